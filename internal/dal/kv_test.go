package dal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gregriff/vogo/relay/internal/db"
)

func TestGetAndPutValue(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	conn, err := db.Open(filepath.Join(t.TempDir(), "kv.sqlite"))
	req.NoError(err)
	defer conn.Close()

	_, err = GetValue(ctx, conn, "channels")
	req.ErrorIs(err, ErrNoValue)

	req.NoError(PutValue(ctx, conn, "channels", []byte(`[1]`)))
	req.NoError(PutValue(ctx, conn, "channels", []byte(`[1,2]`)))

	got, err := GetValue(ctx, conn, "channels")
	req.NoError(err)
	req.Equal(`[1,2]`, string(got))
}
