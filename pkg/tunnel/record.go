// Copyright 2025 The Tunctl Authors
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

package tunnel

import (
	"encoding/json"
	"fmt"

	"github.com/tunctl/tunctl/pkg/model"
	"github.com/tunctl/tunctl/pkg/store"
)

// Record pairs a tunnel spec with its status under one locator. It is stored
// as the two-element JSON array [spec, status]
type Record struct {
	Spec   model.TunnelSpec
	Status model.TunnelStatus
}

// MarshalJSON implements json.Marshaler
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Spec, r.Status})
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Record) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("tunnel record must be a [spec, status] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Spec); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &r.Status)
}

// recordStore translates records to and from the generic store's JSON-safe
// representation without changing its contracts
type recordStore struct {
	kv *store.Session
}

func (r recordStore) get(key string) (Record, error) {
	raw, err := r.kv.Get(key)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, err
	}

	return rec, nil
}

func (r recordStore) set(key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return r.kv.Set(key, raw)
}

func (r recordStore) keys() ([]string, error) {
	return r.kv.Keys()
}
