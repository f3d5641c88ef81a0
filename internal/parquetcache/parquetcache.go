// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parquetcache is the concrete cacher.ReplayCache backed by one
// Parquet file per (pair, day) on local disk, following the same
// primitive column-writer/reader shape used for market-data schemas
// elsewhere in the ecosystem.
package parquetcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"

	"github.com/blinklabs-io/shai/internal/poolstate"
)

// Store is a filesystem-backed cacher.ReplayCache rooted at Dir, laid out
// as Dir/<reserveAssetID>_<baseAssetID>/<YYYY-MM-DD>.parquet.
type Store struct {
	Dir string
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("parquetcache: creating root dir: %w", err)
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(pair poolstate.PairKey, day time.Time) string {
	pairDir := filepath.Join(s.Dir, fmt.Sprintf("%d_%d", pair.ReserveAssetID, pair.BaseAssetID))
	return filepath.Join(pairDir, day.UTC().Format("2006-01-02")+".parquet")
}

func stateSchema() *pqschema.GroupNode {
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("t", parquet.Repetitions.Required, pqschema.NewTimestampLogicalType(true, pqschema.TimeUnitSeconds), parquet.Types.Int64, 0, -1)),
		pqschema.NewInt32Node("intra_block_order", parquet.Repetitions.Required, -1),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("reserve_amount", parquet.Repetitions.Required, pqschema.NewIntLogicalType(64, false), parquet.Types.Int64, 0, -1)),
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeLogical("base_amount", parquet.Repetitions.Required, pqschema.NewIntLogicalType(64, false), parquet.Types.Int64, 0, -1)),
	}, -1))
}

// WriteDay writes states as one row group, overwriting any prior cache
// entry for (pair, day).
func (s *Store) WriteDay(pair poolstate.PairKey, day time.Time, states []poolstate.State) error {
	path := s.path(pair, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("parquetcache: creating pair dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("parquetcache: creating %s: %w", path, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	pw := pqfile.NewParquetWriter(f, stateSchema(), pqfile.WithWriterProps(props))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	for _, st := range states {
		cw, _ := rgw.Column(0)
		cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{st.T}, nil, nil)
		cw, _ = rgw.Column(1)
		cw.(*pqfile.Int32ColumnChunkWriter).WriteBatch([]int32{int32(st.IntraBlockOrder)}, nil, nil)
		cw, _ = rgw.Column(2)
		cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{int64(st.ReserveAmount)}, nil, nil)
		cw, _ = rgw.Column(3)
		cw.(*pqfile.Int64ColumnChunkWriter).WriteBatch([]int64{int64(st.BaseAmount)}, nil, nil)
	}
	if err := rgw.Close(); err != nil {
		return fmt.Errorf("parquetcache: closing row group: %w", err)
	}
	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("parquetcache: flushing footer: %w", err)
	}
	return nil
}

// ReadDay returns the cached states for (pair, day), or ok=false if no
// cache file exists yet.
func (s *Store) ReadDay(pair poolstate.PairKey, day time.Time) ([]poolstate.State, bool, error) {
	path := s.path(pair, day)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("parquetcache: opening %s: %w", path, err)
	}
	defer f.Close()

	pr, err := pqfile.NewParquetReader(f)
	if err != nil {
		return nil, false, fmt.Errorf("parquetcache: reading %s: %w", path, err)
	}
	defer pr.Close()

	var states []poolstate.State
	for g := 0; g < pr.NumRowGroups(); g++ {
		rgr := pr.RowGroup(g)
		numRows := rgr.NumRows()
		if numRows == 0 {
			continue
		}

		tCol, _ := rgr.Column(0)
		ts := make([]int64, numRows)
		if _, _, err := tCol.(*pqfile.Int64ColumnChunkReader).ReadBatch(numRows, ts, nil, nil); err != nil {
			return nil, false, fmt.Errorf("parquetcache: reading t column: %w", err)
		}

		orderCol, _ := rgr.Column(1)
		orders := make([]int32, numRows)
		if _, _, err := orderCol.(*pqfile.Int32ColumnChunkReader).ReadBatch(numRows, orders, nil, nil); err != nil {
			return nil, false, fmt.Errorf("parquetcache: reading intra_block_order column: %w", err)
		}

		reserveCol, _ := rgr.Column(2)
		reserves := make([]int64, numRows)
		if _, _, err := reserveCol.(*pqfile.Int64ColumnChunkReader).ReadBatch(numRows, reserves, nil, nil); err != nil {
			return nil, false, fmt.Errorf("parquetcache: reading reserve_amount column: %w", err)
		}

		baseCol, _ := rgr.Column(3)
		bases := make([]int64, numRows)
		if _, _, err := baseCol.(*pqfile.Int64ColumnChunkReader).ReadBatch(numRows, bases, nil, nil); err != nil {
			return nil, false, fmt.Errorf("parquetcache: reading base_amount column: %w", err)
		}

		for i := int64(0); i < numRows; i++ {
			states = append(states, poolstate.State{
				T:               ts[i],
				IntraBlockOrder: uint16(orders[i]),
				ReserveAmount:   uint64(reserves[i]),
				BaseAmount:      uint64(bases[i]),
			})
		}
	}
	return states, true, nil
}
