// Package store persists the coordinator's discovered infrastructure
// and per-barcode energy tallies across restarts, backed by a single
// bbolt database file.
package store

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/tigotap/tigotap/energy"
	"github.com/tigotap/tigotap/frame"
)

var bucketName = []byte("tigotap")
var documentKey = []byte("document")

// ParserState is the persisted subset of a parser's infrastructure
// state: everything needed to resume without re-enumerating the fleet.
type ParserState struct {
	GatewayIdentities map[frame.GatewayID]frame.LongAddress                  `json:"gateway_identities"`
	GatewayVersions   map[frame.GatewayID]string                             `json:"gateway_versions"`
	GatewayNodeTables map[frame.GatewayID]map[frame.NodeID]frame.LongAddress `json:"gateway_node_tables"`
}

// EnergyRecord is one barcode's persisted energy accumulator.
type EnergyRecord struct {
	DailyWh        float64   `json:"daily_energy_wh"`
	TotalWh        float64   `json:"total_energy_wh"`
	DailyResetDate time.Time `json:"daily_reset_date"`
	LastPowerW     float64   `json:"last_power_w"`
	LastReadingTS  time.Time `json:"last_reading_ts"`
	ReadingsToday  int       `json:"readings_today"`
}

// Document is the full persisted shape: infrastructure state plus
// per-barcode energy tallies and discovery bookkeeping.
type Document struct {
	BarcodeToNode      map[string]frame.NodeID `json:"barcode_to_node"`
	DiscoveredBarcodes []string                `json:"discovered_barcodes"`
	ParserState        ParserState             `json:"parser_state"`
	EnergyData         map[string]EnergyRecord `json:"energy_data"`
}

func emptyDocument() Document {
	return Document{
		BarcodeToNode: make(map[string]frame.NodeID),
		ParserState: ParserState{
			GatewayIdentities: make(map[frame.GatewayID]frame.LongAddress),
			GatewayVersions:   make(map[frame.GatewayID]string),
			GatewayNodeTables: make(map[frame.GatewayID]map[frame.NodeID]frame.LongAddress),
		},
		EnergyData: make(map[string]EnergyRecord),
	}
}

// Store is a bbolt-backed single-document store.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) the bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load reads the persisted document. Any error loading or unmarshaling
// it - including a missing document, the first run - yields an empty
// Document rather than propagating the error, matching the reference
// client's "never let a corrupt state file block startup" policy.
func (s *Store) Load() Document {
	doc := emptyDocument()
	_ = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		raw := b.Get(documentKey)
		if raw == nil {
			return nil
		}
		var loaded Document
		if err := json.Unmarshal(raw, &loaded); err != nil {
			return nil
		}
		doc = loaded
		return nil
	})
	return doc
}

// Save persists doc. bbolt's transaction commit is itself atomic (fsync
// of a single mmap'd page write), so unlike the reference client's
// write-tmp-then-rename dance, no separate staging file is needed.
func (s *Store) Save(doc Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put(documentKey, raw)
	})
}

// EnergyRecordFromAccumulator converts a live energy.Accumulator into
// its persisted form.
func EnergyRecordFromAccumulator(acc energy.Accumulator) EnergyRecord {
	return EnergyRecord{
		DailyWh:        acc.DailyWh,
		TotalWh:        acc.TotalWh,
		DailyResetDate: acc.DailyResetDate,
		LastPowerW:     acc.LastPowerW,
		LastReadingTS:  acc.LastReadingTS,
		ReadingsToday:  acc.ReadingsToday,
	}
}

// ToAccumulator converts a persisted EnergyRecord back into a live
// energy.Accumulator.
func (r EnergyRecord) ToAccumulator() energy.Accumulator {
	return energy.Accumulator{
		DailyWh:        r.DailyWh,
		TotalWh:        r.TotalWh,
		DailyResetDate: r.DailyResetDate,
		HaveResetDate:  !r.DailyResetDate.IsZero(),
		LastPowerW:     r.LastPowerW,
		LastReadingTS:  r.LastReadingTS,
		HaveLastTS:     !r.LastReadingTS.IsZero(),
		ReadingsToday:  r.ReadingsToday,
	}
}
