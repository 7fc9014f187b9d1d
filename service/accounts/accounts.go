// Package accounts reads the list of accounts to report on.
package accounts

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Account is one row of the account source.
type Account struct {
	ID          string `yaml:"account" json:"account"`
	ClaimPeriod string `yaml:"claim_period" json:"claim_period"`
}

// Source yields accounts in the order they should be reported.
type Source interface {
	ReadAccounts(ctx context.Context) ([]Account, error)
}

// FromRows converts spreadsheet-style rows to accounts. Rows whose first cell is
// empty or whitespace are skipped; a missing second cell is an empty claim period.
func FromRows(rows [][]any) []Account {
	out := make([]Account, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(cell(row[0]))
		if id == "" {
			continue
		}
		acct := Account{ID: id}
		if len(row) > 1 {
			acct.ClaimPeriod = strings.TrimSpace(cell(row[1]))
		}
		out = append(out, acct)
	}
	return out
}

func cell(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// FileSource reads accounts from a YAML file of the form:
//
//	accounts:
//	  - account: alice.tg
//	    claim_period: "10"
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource. The file is re-read on every call.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type accountsFile struct {
	Accounts []Account `yaml:"accounts"`
}

// ReadAccounts loads the file and drops entries without an account id.
func (f *FileSource) ReadAccounts(ctx context.Context) ([]Account, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var parsed accountsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file %s: %w", f.path, err)
	}

	rows := make([][]any, len(parsed.Accounts))
	for i, a := range parsed.Accounts {
		rows[i] = []any{a.ID, a.ClaimPeriod}
	}
	return FromRows(rows), nil
}

// Static is a fixed in-memory Source.
type Static []Account

// ReadAccounts returns the accounts unchanged.
func (s Static) ReadAccounts(ctx context.Context) ([]Account, error) {
	return s, nil
}
