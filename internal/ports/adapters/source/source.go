package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forPelevin/clipforge/internal/types"
)

// Local uses an existing file in place.
type Local struct{}

func (Local) Fetch(_ context.Context, identifier, _ string) (types.SourceVideo, error) {
	p, err := filepath.Abs(identifier)
	if err != nil {
		return types.SourceVideo{}, err
	}
	st, err := os.Stat(p)
	if err != nil {
		return types.SourceVideo{}, fmt.Errorf("stat input: %w", err)
	}
	if !st.Mode().IsRegular() {
		return types.SourceVideo{}, fmt.Errorf("input %s is not a regular file", p)
	}
	return types.SourceVideo{
		ID:    identifier,
		Path:  p,
		Title: strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)),
	}, nil
}

func idHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}
