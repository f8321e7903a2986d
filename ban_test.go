package main

import (
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
)

func openTestBans(t *testing.T) *BanList {
	t.Helper()

	l := logrus.New()
	l.Out = io.Discard

	bans, err := OpenBanList(filepath.Join(t.TempDir(), "storage", "ban.sqlite"), l)
	if err != nil {
		t.Fatal("failed to open ban list:", err)
	}
	t.Cleanup(func() { bans.Close() })

	return bans
}

func TestBanList(t *testing.T) {
	bans := openTestBans(t)

	if err := bans.Ban("192.0.2.7", "griefer"); err != nil {
		t.Fatal("ban failed:", err)
	}
	if err := bans.Ban("2001:db8::1", ""); err != nil {
		t.Fatal("ban failed:", err)
	}

	if err := bans.Ban("192.0.2.7", "again"); !errors.Is(err, ErrAlreadyBanned) {
		t.Errorf("want %v, got %v", ErrAlreadyBanned, err)
	}
	if err := bans.Ban("not an ip", ""); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("want %v, got %v", ErrInvalidAddress, err)
	}

	list, err := bans.List()
	if err != nil {
		t.Fatal("list failed:", err)
	}

	want := map[string]string{
		"192.0.2.7":   "griefer",
		"2001:db8::1": "not known",
	}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Errorf("ban list mismatch (-want +got):\n%s", diff)
	}

	banned, name, err := bans.IsBanned("192.0.2.7")
	if err != nil || !banned || name != "griefer" {
		t.Errorf("IsBanned = %v, %q, %v", banned, name, err)
	}

	if err := bans.Unban("griefer"); err != nil {
		t.Fatal("unban by name failed:", err)
	}
	if err := bans.Unban("2001:0db8::0001"); err != nil {
		t.Fatal("unban by address failed:", err)
	}
	if err := bans.Unban("192.0.2.7"); !errors.Is(err, ErrNotBanned) {
		t.Errorf("want %v, got %v", ErrNotBanned, err)
	}

	list, err = bans.List()
	if err != nil {
		t.Fatal("list failed:", err)
	}
	if len(list) != 0 {
		t.Errorf("want empty ban list, got %v", list)
	}
}

func TestBanList_Accept(t *testing.T) {
	bans := openTestBans(t)

	if err := bans.Ban("192.0.2.7", "griefer"); err != nil {
		t.Fatal("ban failed:", err)
	}

	tests := []struct {
		addr net.Addr
		want bool
	}{
		{addr: &net.UDPAddr{IP: net.ParseIP("192.0.2.7"), Port: 30000}, want: false},
		{addr: &net.UDPAddr{IP: net.ParseIP("192.0.2.8"), Port: 30000}, want: true},
		{addr: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, want: true},
	}

	for _, tt := range tests {
		if got := bans.Accept(tt.addr); got != tt.want {
			t.Errorf("Accept(%v) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestBanList_AcceptLookupFailure(t *testing.T) {
	bans := openTestBans(t)
	bans.Close()

	addr := &net.UDPAddr{IP: net.ParseIP("192.0.2.8"), Port: 30000}
	if bans.Accept(addr) {
		t.Error("peer accepted although the ban list is unavailable")
	}
}
