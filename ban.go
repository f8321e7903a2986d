package main

import (
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAddress = errors.New("invalid ip address format")
	ErrAlreadyBanned  = errors.New("ip address is already banned")
	ErrNotBanned      = errors.New("no ban entry matches")
)

const defaultBanDB = "storage/ban.sqlite"

const banSQL = `CREATE TABLE IF NOT EXISTS ban (
	addr VARCHAR(39) NOT NULL,
	name VARCHAR(32) NOT NULL,
	PRIMARY KEY (addr)
);`

// A BanList stores banned IP addresses
type BanList struct {
	db  *DB
	log logrus.FieldLogger
}

// OpenBanList opens or creates the ban database at path
func OpenBanList(path string, log logrus.FieldLogger) (*BanList, error) {
	db, err := OpenSQLite3(path, banSQL)
	if err != nil {
		return nil, fmt.Errorf("open ban list: %w", err)
	}

	return &BanList{db: db, log: log}, nil
}

// Close closes the database
func (b *BanList) Close() error { return b.db.Close() }

// Ban adds addr to the ban list.
// name is a free-form note, usually who the address belonged to.
func (b *BanList) Ban(addr, name string) error {
	ip := net.ParseIP(addr)
	if ip == nil {
		return ErrInvalidAddress
	}
	addr = ip.String()

	banned, _, err := b.IsBanned(addr)
	if err != nil {
		return err
	}

	if banned {
		return fmt.Errorf("%w: %s", ErrAlreadyBanned, addr)
	}

	if name == "" {
		name = "not known"
	}

	_, err = b.db.Exec(`INSERT INTO ban (
		addr,
		name
	) VALUES (
		?,
		?
	);`, addr, name)
	return err
}

// Unban removes every entry whose address or name matches
func (b *BanList) Unban(match string) error {
	if ip := net.ParseIP(match); ip != nil {
		match = ip.String()
	}

	res, err := b.db.Exec(`DELETE FROM ban WHERE name = ? OR addr = ?;`, match, match)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotBanned, match)
	}

	return nil
}

// IsBanned reports whether addr is banned and the name it was banned under
func (b *BanList) IsBanned(addr string) (bool, string, error) {
	var name string
	err := b.db.QueryRow(`SELECT name FROM ban WHERE addr = ?;`, addr).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return true, "", err
	}

	return true, name, nil
}

// List returns the banned addresses and their names
func (b *BanList) List() (map[string]string, error) {
	rows, err := b.db.Query(`SELECT addr, name FROM ban;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	r := make(map[string]string)

	for rows.Next() {
		var addr, name string

		if err = rows.Scan(&addr, &name); err != nil {
			return nil, err
		}

		r[addr] = name
	}

	return r, rows.Err()
}

// Accept is a connection filter that rejects banned addresses.
// Lookup failures reject the peer too.
func (b *BanList) Accept(addr net.Addr) bool {
	ip := addr.String()
	if udp, ok := addr.(*net.UDPAddr); ok {
		ip = udp.IP.String()
	}

	banned, name, err := b.IsBanned(ip)
	if err != nil {
		b.log.WithError(err).WithField("addr", ip).Error("ban lookup failed")
		return false
	}

	if banned {
		b.log.WithField("addr", ip).WithField("name", name).Info("rejected banned address")
	}

	return !banned
}
