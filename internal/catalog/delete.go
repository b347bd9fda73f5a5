package catalog

import (
	"fmt"
	"os"
	"path/filepath"
)

// DeleteItemDir removes a workshop item's entire id directory. Only 10-digit
// ids directly under the workshop root are eligible; anything else is
// rejected before touching the filesystem.
func (c *Catalog) DeleteItemDir(id string) error {
	if len(id) != 10 || !isDigits(id) {
		return fmt.Errorf("refusing to delete non-workshop id %q", id)
	}

	dir := filepath.Join(c.workshopDir, id)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}
