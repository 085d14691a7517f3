package app

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustPort(t *testing.T, p string) int {
	t.Helper()
	n, err := strconv.Atoi(p)
	require.NoError(t, err)
	return n
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
