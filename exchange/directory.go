// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package exchange reads the exchange directory: an index file mapping each
// market label to a CSV list of the companies listed there.
package exchange

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alphadose/haxmap"
	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pvkpi/data"
)

var (
	ErrUnknownExchange = errors.New("unknown exchange")
)

// Exchange is one market and its listed companies
type Exchange struct {
	Label     string
	Path      string
	Companies []*data.Company
}

// Directory holds every exchange of an index file
type Directory struct {
	exchanges []*Exchange
	byLabel   map[string]*Exchange
	tickers   *haxmap.Map[string, *data.Company]
}

// Entry is a line of the index file
type Entry struct {
	Label string
	Path  string
}

// ReadIndex parses an index of "label,path" lines. Lines without exactly two
// fields are ignored.
func ReadIndex(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	entries := make([]Entry, 0)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(row) != 2 {
			continue
		}

		entries = append(entries, Entry{
			Label: strings.TrimSpace(row[0]),
			Path:  strings.TrimSpace(row[1]),
		})
	}

	return entries, nil
}

// ReadCompanies parses a company list with ticker, description, sector and
// industry columns. Invalid UTF-8 is replaced rather than rejected.
func ReadCompanies(r io.Reader) ([]*data.Company, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	companies := make([]*data.Company, 0)
	if err := gocsv.UnmarshalString(strings.ToValidUTF8(string(raw), "\uFFFD"), &companies); err != nil {
		return nil, err
	}

	return companies, nil
}

// LoadDirectory reads the index at indexPath and every company list it
// names. Relative company paths are resolved against the index's directory.
func LoadDirectory(indexPath string) (*Directory, error) {
	fh, err := os.Open(indexPath)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	entries, err := ReadIndex(fh)
	if err != nil {
		return nil, fmt.Errorf("could not read exchange index %s: %w", indexPath, err)
	}

	baseDir := filepath.Dir(indexPath)
	exchanges := make([]*Exchange, 0, len(entries))

	for _, entry := range entries {
		companyPath := entry.Path
		if !filepath.IsAbs(companyPath) {
			companyPath = filepath.Join(baseDir, companyPath)
		}

		companies, err := readCompanyFile(companyPath)
		if err != nil {
			return nil, fmt.Errorf("could not read companies for %s: %w", entry.Label, err)
		}

		exchanges = append(exchanges, &Exchange{
			Label:     entry.Label,
			Path:      entry.Path,
			Companies: companies,
		})
	}

	return New(exchanges...), nil
}

func readCompanyFile(fn string) ([]*data.Company, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadCompanies(fh)
}

// New builds a directory from already loaded exchanges. Each company is
// stamped with the label of its exchange; a ticker listed on several
// exchanges resolves to its first listing.
func New(exchanges ...*Exchange) *Directory {
	dir := &Directory{
		exchanges: exchanges,
		byLabel:   make(map[string]*Exchange, len(exchanges)),
		tickers:   haxmap.New[string, *data.Company](),
	}

	for _, exch := range exchanges {
		if _, ok := dir.byLabel[exch.Label]; !ok {
			dir.byLabel[exch.Label] = exch
		}

		for _, company := range exch.Companies {
			company.Ticker = strings.TrimSpace(company.Ticker)
			company.StockExchange = exch.Label
			if company.Ticker == "" {
				continue
			}
			dir.tickers.GetOrSet(company.Ticker, company)
		}
	}

	return dir
}

// Labels returns the exchange labels in index order
func (dir *Directory) Labels() []string {
	labels := make([]string, len(dir.exchanges))
	for idx, exch := range dir.exchanges {
		labels[idx] = exch.Label
	}
	return labels
}

// Companies returns the companies listed on the exchange with label
func (dir *Directory) Companies(label string) ([]*data.Company, error) {
	exch, ok := dir.byLabel[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, label)
	}
	return exch.Companies, nil
}

// All returns every company of every exchange in index order. Rows without
// a ticker are left out.
func (dir *Directory) All() []*data.Company {
	all := make([]*data.Company, 0)
	for _, exch := range dir.exchanges {
		for _, company := range exch.Companies {
			if company.Ticker == "" {
				continue
			}
			all = append(all, company)
		}
	}
	return all
}

// Lookup finds a company by ticker
func (dir *Directory) Lookup(ticker string) (*data.Company, bool) {
	return dir.tickers.Get(strings.TrimSpace(ticker))
}
