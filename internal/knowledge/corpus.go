package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"solguardian/types"
)

// swcSeverities assigns a severity to well-known SWC classifications; ids
// not listed default to medium.
var swcSeverities = map[string]string{
	"SWC-105": "critical", // unprotected ether withdrawal
	"SWC-106": "critical", // unprotected selfdestruct
	"SWC-107": "critical", // reentrancy
	"SWC-112": "critical", // delegatecall to untrusted callee
	"SWC-101": "high",     // integer overflow
	"SWC-115": "high",     // tx.origin authorization
	"SWC-124": "high",     // write to arbitrary storage
	"SWC-104": "medium",   // unchecked call return value
	"SWC-116": "medium",   // block values as time proxy
	"SWC-120": "medium",   // weak randomness
	"SWC-128": "medium",   // dos with block gas limit
}

// swcRegistryEntry mirrors the SWC registry JSON export format.
type swcRegistryEntry struct {
	Content struct {
		Title       string `json:"Title"`
		Description string `json:"Description"`
		Remediation string `json:"Remediation"`
	} `json:"content"`
}

// exploitFrontmatter is the YAML header of a markdown exploit write-up
// (DeFiHackLabs-style corpus).
type exploitFrontmatter struct {
	Name         string `yaml:"name"`
	Protocol     string `yaml:"protocol"`
	Category     string `yaml:"category"`
	Loss         string `yaml:"loss"`
	Date         string `yaml:"date"`
	Source       string `yaml:"source"`
	AttackVector string `yaml:"attack_vector"`
	Auditor      string `yaml:"auditor"`
	Severity     string `yaml:"severity"`
}

// Seeder populates the knowledge collections from on-disk corpora.
type Seeder struct {
	store Store
}

// NewSeeder creates a seeder over the given store.
func NewSeeder(store Store) *Seeder {
	return &Seeder{store: store}
}

// SeedSWCRegistry loads the SWC registry JSON export into the weakness
// classification collection.
func (s *Seeder) SeedSWCRegistry(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read SWC registry %s: %w", path, err)
	}
	var registry map[string]swcRegistryEntry
	if err := json.Unmarshal(data, &registry); err != nil {
		return 0, fmt.Errorf("failed to parse SWC registry: %w", err)
	}

	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	records := make([]types.KnowledgeRecord, 0, len(ids))
	for _, id := range ids {
		entry := registry[id]
		severity := swcSeverities[id]
		if severity == "" {
			severity = "medium"
		}
		doc := strings.TrimSpace(entry.Content.Title + "\n\n" + entry.Content.Description)
		records = append(records, types.KnowledgeRecord{
			ID:       id,
			Document: doc,
			Metadata: map[string]string{
				"title":       entry.Content.Title,
				"severity":    severity,
				"remediation": entry.Content.Remediation,
			},
		})
	}
	if err := s.store.Add(ctx, types.CollectionSWC, records); err != nil {
		return 0, err
	}
	log.Printf("📚 Seeded %d SWC classifications from %s", len(records), path)
	return len(records), nil
}

// SeedExploitDir loads markdown exploit write-ups with YAML frontmatter
// into the exploits collection. Files without parseable frontmatter are
// skipped with a warning.
func (s *Seeder) SeedExploitDir(ctx context.Context, dir string) (int, error) {
	return s.seedMarkdownDir(ctx, dir, types.CollectionExploits)
}

// SeedAuditDir loads markdown audit findings into the audit findings
// collection.
func (s *Seeder) SeedAuditDir(ctx context.Context, dir string) (int, error) {
	return s.seedMarkdownDir(ctx, dir, types.CollectionAuditFindings)
}

func (s *Seeder) seedMarkdownDir(ctx context.Context, dir string, collection types.Collection) (int, error) {
	var records []types.KnowledgeRecord
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("⚠️  Skipping unreadable corpus file %s: %v", path, err)
			return nil
		}
		fm, body, err := splitFrontmatter(string(data))
		if err != nil {
			log.Printf("⚠️  Skipping corpus file without frontmatter %s: %v", path, err)
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		id := strings.TrimSuffix(filepath.ToSlash(rel), ".md")
		source := fm.Source
		if source == "" {
			source = filepath.Base(dir)
		}
		records = append(records, types.KnowledgeRecord{
			ID:       id,
			Document: body,
			Metadata: map[string]string{
				"name":          fm.Name,
				"protocol":      fm.Protocol,
				"category":      fm.Category,
				"loss":          fm.Loss,
				"date":          fm.Date,
				"source":        source,
				"attack_vector": fm.AttackVector,
				"auditor":       fm.Auditor,
				"severity":      fm.Severity,
			},
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk corpus dir %s: %w", dir, err)
	}
	if err := s.store.Add(ctx, collection, records); err != nil {
		return 0, err
	}
	log.Printf("📚 Seeded %d records into %s from %s", len(records), collection, dir)
	return len(records), nil
}

// splitFrontmatter separates a YAML frontmatter block (fenced by `---`
// lines) from the markdown body.
func splitFrontmatter(content string) (*exploitFrontmatter, string, error) {
	trimmed := strings.TrimLeft(content, "\uFEFF\n\r ")
	if !strings.HasPrefix(trimmed, "---") {
		return nil, "", fmt.Errorf("no frontmatter fence")
	}
	rest := trimmed[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "", fmt.Errorf("unterminated frontmatter fence")
	}
	var fm exploitFrontmatter
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	body := rest[end+4:]
	if nl := strings.Index(body, "\n"); nl >= 0 {
		body = body[nl+1:]
	}
	return &fm, strings.TrimSpace(body), nil
}
