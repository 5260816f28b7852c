package activities

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	iopkg "github.com/yourorg/table-export/internal/iopkg"
	"github.com/yourorg/table-export/internal/types"
)

// CleanupScratch removes the workflow's scratch subdirectory under the configured scratch root,
// along with its staged rows when a staging prefix is configured.
// It is safe to call even if nothing exists.
func (a *Activities) CleanupScratch(ctx context.Context, p types.CleanupParams) error {
	sub, err := checkSubdir(p.ScratchSubdir)
	if err != nil {
		return err
	}
	if a.cfg.StagingURI != "" {
		if err := iopkg.Remove(ctx, a.formattedURI(sub)); err != nil {
			return fmt.Errorf("remove staged rows: %w", err)
		}
	}
	return os.RemoveAll(filepath.Join(a.cfg.ScratchDir, sub))
}

// checkSubdir rejects anything that is not a relative path strictly below the scratch root.
func checkSubdir(subdir string) (string, error) {
	sub := filepath.Clean(subdir)
	if subdir == "" || sub == "." || sub == ".." || strings.HasPrefix(sub, "../") || filepath.IsAbs(sub) {
		return "", errInvalidSubdir
	}
	return sub, nil
}
