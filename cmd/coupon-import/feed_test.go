package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/rentacar/internal/domain/coupon"
)

func writeFeed(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		code    string
		percent string
		ok      bool
	}{
		{line: "SPRING20,20", code: "SPRING20", percent: "20", ok: true},
		{line: " summer15 , 15.5 ", code: "SUMMER15", percent: "15.5", ok: true},
		{line: "FULLFREE,100", code: "FULLFREE", percent: "100", ok: true},
		{line: "NOPCT", ok: false},
		{line: "ABC,10", ok: false},
		{line: "ZEROPCT,0", ok: false},
		{line: "TOOMUCH,101", ok: false},
		{line: "WORDS,ten", ok: false},
		{line: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			code, percent, ok := parseLine(tt.line)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.code, code)
			assert.True(t, decimal.RequireFromString(tt.percent).Equal(percent), percent.String())
		})
	}
}

func TestImporter_Scan(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeFeed(t, dir, "a.gz", "SPRING20,20", "ONLYHERE,50", "SHARED3,30", "garbage"),
		writeFeed(t, dir, "b.gz", "spring20,15", "SHARED3,25", "OTHER1,5"),
		writeFeed(t, dir, "c.gz", "SHARED3,35", "OTHER2,5"),
	}

	t.Run("TwoFeeds", func(t *testing.T) {
		offers, err := Importer{MinFeeds: 2, Capacity: 1000}.Scan(context.Background(), files)
		require.NoError(t, err)
		require.Len(t, offers, 2)

		assert.Equal(t, "SHARED3", offers[0].Code)
		assert.True(t, decimal.NewFromInt(25).Equal(offers[0].Percent))
		assert.Equal(t, "SPRING20", offers[1].Code)
		assert.True(t, decimal.NewFromInt(15).Equal(offers[1].Percent))
	})
	t.Run("ThreeFeeds", func(t *testing.T) {
		offers, err := Importer{MinFeeds: 3, Capacity: 1000}.Scan(context.Background(), files)
		require.NoError(t, err)
		require.Len(t, offers, 1)
		assert.Equal(t, "SHARED3", offers[0].Code)
	})
	t.Run("NotEnoughFeeds", func(t *testing.T) {
		offers, err := Importer{MinFeeds: 4}.Scan(context.Background(), files)
		require.NoError(t, err)
		assert.Empty(t, offers)
	})
	t.Run("MissingFile", func(t *testing.T) {
		_, err := Importer{MinFeeds: 2}.Scan(context.Background(), append(files[:1:1], filepath.Join(dir, "nope.gz")))
		require.Error(t, err)
	})
	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Importer{MinFeeds: 2}.Scan(ctx, files)
		require.ErrorIs(t, err, context.Canceled)
	})
}

type recordingUpserter struct {
	got []coupon.Coupon
}

func (r *recordingUpserter) Upsert(_ context.Context, c *coupon.Coupon) error {
	r.got = append(r.got, *c)
	return nil
}

func TestWriteCoupons(t *testing.T) {
	repo := &recordingUpserter{}
	err := writeCoupons(context.Background(), repo, []Offer{
		{Code: "SPRING20", Percent: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)
	require.Len(t, repo.got, 1)
	assert.Equal(t, "SPRING20", repo.got[0].Code)
	assert.Equal(t, "20% off (partner feed)", repo.got[0].Description)
}
