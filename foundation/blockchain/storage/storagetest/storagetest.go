// Package storagetest provides a conformance suite run against every
// database.Storage implementation.
package storagetest

import (
	"testing"

	"github.com/leakwatch/blockchain/foundation/blockchain/database"
	"github.com/stretchr/testify/require"
)

// Run exercises the storage through the database so the blocks written are
// real, hashed blocks.
func Run(t *testing.T, newStorage func(t *testing.T) database.Storage) {
	t.Run("write and read", func(t *testing.T) {
		strg := newStorage(t)

		db, err := database.New(database.Config{Storage: strg})
		require.NoError(t, err)

		report := database.CitizenReport{Recipient: "bob", RewardAmount: 5, ZoneID: "Z1", Latitude: 40.7, Longitude: -74.0}
		block, err := db.Append(report)
		require.NoError(t, err)

		blockData, err := strg.GetBlock(block.Index)
		require.NoError(t, err)
		require.Equal(t, block.Hash, blockData.Hash)
		require.Equal(t, block.PreviousHash, blockData.PreviousHash)

		stored, err := database.ToBlock(blockData)
		require.NoError(t, err)
		require.Equal(t, block, stored)

		_, err = strg.GetBlock(3)
		require.Error(t, err)
	})

	t.Run("iterate in order", func(t *testing.T) {
		strg := newStorage(t)

		db, err := database.New(database.Config{Storage: strg})
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			_, err := db.Append(database.RewardTransaction{Sender: "System", Recipient: "carol", RewardAmount: float64(i + 1)})
			require.NoError(t, err)
		}

		var indexes []uint64
		iter := strg.ForEach()
		for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
			require.NoError(t, err)
			indexes = append(indexes, blockData.Index)
		}
		require.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, indexes)

		reloaded, err := database.New(database.Config{Storage: strg})
		require.NoError(t, err)
		require.Equal(t, db.Chain(), reloaded.Chain())
	})

	t.Run("refuse out of order", func(t *testing.T) {
		strg := newStorage(t)

		db, err := database.New(database.Config{Storage: strg})
		require.NoError(t, err)

		blockData, err := database.NewBlockData(db.LatestBlock())
		require.NoError(t, err)
		require.Error(t, strg.Write(blockData))

		blockData.Index = 5
		require.Error(t, strg.Write(blockData))
	})

	t.Run("reset", func(t *testing.T) {
		strg := newStorage(t)

		_, err := database.New(database.Config{Storage: strg})
		require.NoError(t, err)
		require.NoError(t, strg.Reset())

		iter := strg.ForEach()
		_, _ = iter.Next()
		require.True(t, iter.Done())
	})
}
