// Package fixtures generates repeatable fake rows for tests.
package fixtures

import (
	crand "crypto/rand"
	"math/rand"
	"sync"

	faker "github.com/go-faker/faker/v4"
)

// Supplier is a row of the suppliers table used throughout the tests.
type Supplier struct {
	SNo    string `db:"sno"    faker:"uuid_hyphenated"`
	Name   string `db:"name"   faker:"name"`
	City   string `db:"city"   faker:"oneof: London, Paris, Athens, Oslo"`
	Status int    `db:"status" faker:"boundary_start=10, boundary_end=40"`
}

// SuppliersDDL creates the suppliers table in SQLite and Postgres alike.
const SuppliersDDL = `create table suppliers (
  sno    varchar(36) primary key,
  name   varchar(100) not null,
  city   varchar(40),
  status integer
)`

// faker's sources are package globals.
var mu sync.Mutex

// Suppliers returns n suppliers. The same seed always gives the same rows.
func Suppliers(seed int64, n int) ([]Supplier, error) {
	mu.Lock()
	defer mu.Unlock()
	faker.SetCryptoSource(NewReader(seed))
	faker.SetRandomSource(rand.NewSource(seed))
	defer func() {
		faker.SetCryptoSource(crand.Reader)
		faker.SetRandomSource(faker.NewSafeSource(rand.NewSource(rand.Int63())))
	}()

	out := make([]Supplier, n)
	for i := range out {
		if err := faker.FakeData(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Map returns s keyed by column name.
func (s Supplier) Map() map[string]any {
	return map[string]any{"sno": s.SNo, "name": s.Name, "city": s.City, "status": s.Status}
}
