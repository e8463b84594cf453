// Package refdata loads contracts, traders and accounts from a JSON
// document:
//
//	{"contracts": [...], "traders": [...], "accounts": [...]}
//
// It answers the reference half of the exchange model.
package refdata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sauravnith/swirly/domain/account"
	"github.com/sauravnith/swirly/domain/instrument"
)

type traderEntry struct {
	ID      uint64 `json:"id"`
	Mnem    string `json:"mnem"`
	Display string `json:"display"`
	Email   string `json:"email"`
}

type accountEntry struct {
	ID      uint64 `json:"id"`
	Mnem    string `json:"mnem"`
	Display string `json:"display"`
}

type document struct {
	Contracts []*instrument.Contract `json:"contracts"`
	Traders   []traderEntry          `json:"traders"`
	Accounts  []accountEntry         `json:"accounts"`
}

type RefData struct {
	doc document
}

// Load reads and validates the document at path.
func Load(path string) (*RefData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*RefData, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode refdata: %w", err)
	}
	if err := doc.validate(); err != nil {
		return nil, err
	}
	return &RefData{doc: doc}, nil
}

func (d *document) validate() error {
	seen := make(map[uint64]bool)
	for _, c := range d.Contracts {
		switch {
		case c.ID == 0 || c.ID > instrument.IDMask:
			return fmt.Errorf("contract %q: id %d out of range", c.Mnem, c.ID)
		case seen[uint64(c.ID)]:
			return fmt.Errorf("contract %q: duplicate id %d", c.Mnem, c.ID)
		case c.Mnem == "":
			return fmt.Errorf("contract %d: missing mnem", c.ID)
		case !c.TickSize.IsPositive():
			return fmt.Errorf("contract %q: tick size must be positive", c.Mnem)
		case c.MinLots < 0 || (c.MaxLots != 0 && c.MaxLots < c.MinLots):
			return fmt.Errorf("contract %q: invalid lot limits", c.Mnem)
		}
		seen[uint64(c.ID)] = true
	}

	clear(seen)
	for _, t := range d.Traders {
		if err := checkParty("trader", t.ID, t.Mnem, seen); err != nil {
			return err
		}
	}
	clear(seen)
	for _, a := range d.Accounts {
		if err := checkParty("account", a.ID, a.Mnem, seen); err != nil {
			return err
		}
	}
	return nil
}

func checkParty(kind string, id uint64, mnem string, seen map[uint64]bool) error {
	switch {
	case id == 0 || id > instrument.IDMask:
		return fmt.Errorf("%s %q: id %d out of range", kind, mnem, id)
	case seen[id]:
		return fmt.Errorf("%s %q: duplicate id %d", kind, mnem, id)
	case mnem == "":
		return fmt.Errorf("%s %d: missing mnem", kind, id)
	}
	seen[id] = true
	return nil
}

// ReadContracts returns copies of the contracts.
func (r *RefData) ReadContracts() ([]*instrument.Contract, error) {
	out := make([]*instrument.Contract, len(r.doc.Contracts))
	for i, c := range r.doc.Contracts {
		cp := *c
		out[i] = &cp
	}
	return out, nil
}

// ReadTraders builds fresh traders on every call.
func (r *RefData) ReadTraders() ([]*account.Trader, error) {
	out := make([]*account.Trader, len(r.doc.Traders))
	for i, t := range r.doc.Traders {
		out[i] = account.NewTrader(t.ID, t.Mnem, t.Display, t.Email)
	}
	return out, nil
}

// ReadAccounts builds fresh accounts on every call.
func (r *RefData) ReadAccounts() ([]*account.Account, error) {
	out := make([]*account.Account, len(r.doc.Accounts))
	for i, a := range r.doc.Accounts {
		out[i] = account.NewAccount(a.ID, a.Mnem, a.Display)
	}
	return out, nil
}
