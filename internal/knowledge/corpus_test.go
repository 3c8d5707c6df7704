package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solguardian/types"
)

const exploitWriteup = `---
name: The DAO Hack
protocol: TheDAO
category: reentrancy
loss: $60M
date: 2016-06-17
source: rekt.news
attack_vector: recursive call before balance update
---

The attacker exploited the splitDAO function by recursively calling back
into the contract before the balance was zeroed out.
`

func TestSplitFrontmatter(t *testing.T) {
	fm, body, err := splitFrontmatter(exploitWriteup)

	require.NoError(t, err)
	assert.Equal(t, "The DAO Hack", fm.Name)
	assert.Equal(t, "TheDAO", fm.Protocol)
	assert.Equal(t, "reentrancy", fm.Category)
	assert.Equal(t, "$60M", fm.Loss)
	assert.Equal(t, "rekt.news", fm.Source)
	assert.Contains(t, body, "splitDAO")
	assert.NotContains(t, body, "---")
}

func TestSplitFrontmatterErrors(t *testing.T) {
	_, _, err := splitFrontmatter("no fence here")
	assert.Error(t, err)

	_, _, err = splitFrontmatter("---\nname: x\nno closing fence")
	assert.Error(t, err)

	_, _, err = splitFrontmatter("---\n\t: not yaml [\n---\nbody")
	assert.Error(t, err)
}

func TestSeedExploitDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2016"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2016", "dao.md"), []byte(exploitWriteup), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "no-frontmatter.md"), []byte("just markdown"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not markdown"), 0o644))

	store := newFakeStore()
	seeder := NewSeeder(store)

	n, err := seeder.SeedExploitDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "files without frontmatter and non-markdown files are skipped")

	records := store.added[types.CollectionExploits]
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "2016/dao", rec.ID, "the relative path sans extension is the record ID")
	assert.Equal(t, "The DAO Hack", rec.Metadata["name"])
	assert.Equal(t, "rekt.news", rec.Metadata["source"])
	assert.Contains(t, rec.Document, "splitDAO")
}

func TestSeedSWCRegistry(t *testing.T) {
	registry := `{
  "SWC-107": {"content": {"Title": "Reentrancy", "Description": "Calls to external contracts...", "Remediation": "Checks-effects-interactions."}},
  "SWC-999": {"content": {"Title": "Made Up", "Description": "Unknown classification.", "Remediation": "None."}}
}`
	path := filepath.Join(t.TempDir(), "swc.json")
	require.NoError(t, os.WriteFile(path, []byte(registry), 0o644))

	store := newFakeStore()
	seeder := NewSeeder(store)

	n, err := seeder.SeedSWCRegistry(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records := store.added[types.CollectionSWC]
	require.Len(t, records, 2)
	assert.Equal(t, "SWC-107", records[0].ID, "records are inserted in sorted ID order")
	assert.Equal(t, "critical", records[0].Metadata["severity"])
	assert.Equal(t, "medium", records[1].Metadata["severity"], "unknown ids default to medium")
	assert.Contains(t, records[0].Document, "Reentrancy")
}

func TestSeedSWCRegistryMissingFile(t *testing.T) {
	seeder := NewSeeder(newFakeStore())
	_, err := seeder.SeedSWCRegistry(context.Background(), "/nonexistent/swc.json")
	assert.Error(t, err)
}
