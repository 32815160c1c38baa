package session

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleRecord() Record {
	return Record{
		Token: "header.payload.signature",
		User: &User{
			ID:       "7",
			Username: "alice",
			Avatar:   "/avatars/alice.png",
			Roles:    RoleSet{"user1", "admin"},
		},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestEncodeDecodeIgnoresRoleOrder(t *testing.T) {
	r := sampleRecord()
	data, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, r)
	}

	reordered := sampleRecord()
	reordered.User.Roles = RoleSet{"admin", "user1"}
	other, err := Encode(reordered)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(data, other) {
		t.Fatal("expected encoding to be independent of role order")
	}
}

func TestEncodeDecodeWithoutUser(t *testing.T) {
	for _, r := range []Record{{}, {Token: "t"}, {ExpiresAt: time.UnixMilli(1700000000000)}} {
		data, err := Encode(r)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !got.Equal(r) {
			t.Fatalf("round trip mismatch: %+v vs %+v", got, r)
		}
	}
}

func TestDecodeRejectsCorruptInput(t *testing.T) {
	good, err := Encode(sampleRecord())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := map[string][]byte{
		"empty":     nil,
		"version":   append([]byte{9}, good[1:]...),
		"truncated": good[:len(good)-3],
		"trailing":  append(append([]byte{}, good...), 0x00),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(data); !errors.Is(err, ErrCorruptRecord) {
				t.Fatalf("expected ErrCorruptRecord, got %v", err)
			}
		})
	}
}

func TestEncodeStringLimits(t *testing.T) {
	r := sampleRecord()
	s, err := EncodeString(r)
	if err != nil {
		t.Fatalf("encode string: %v", err)
	}
	got, err := DecodeString(s)
	if err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if !got.Equal(r) {
		t.Fatal("string round trip mismatch")
	}

	r.Token = strings.Repeat("a", 4000)
	if _, err := EncodeString(r); err == nil {
		t.Fatal("expected oversized record to be rejected")
	}

	r = sampleRecord()
	r.User.Username = strings.Repeat("u", 0x10000)
	if _, err := Encode(r); err == nil {
		t.Fatal("expected oversized username to be rejected")
	}

	if _, err := DecodeString("%%%"); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected corrupt base64 to fail, got %v", err)
	}
}

func TestEncodeDecodeKeepsNanosecondExpiry(t *testing.T) {
	r := sampleRecord()
	r.ExpiresAt = time.Unix(1700000000, 123456789)
	data, err := Encode(r)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.ExpiresAt.Equal(r.ExpiresAt) {
		t.Fatalf("expiry drifted: %v vs %v", got.ExpiresAt, r.ExpiresAt)
	}
}

func TestEncodeDecodeLongFields(t *testing.T) {
	r := sampleRecord()
	r.User.Avatar = "https://cdn.example.com/avatars/" + strings.Repeat("a", 300) + ".png"
	r.User.ID = strings.Repeat("9", 400)
	r.User.Roles = RoleSet{strings.Repeat("r", 260), "admin"}

	s, err := EncodeString(r)
	if err != nil {
		t.Fatalf("encode string: %v", err)
	}
	got, err := DecodeString(s)
	if err != nil {
		t.Fatalf("decode string: %v", err)
	}
	if !got.Equal(r) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got.User, r.User)
	}
}

func TestDecodeRejectsOversizedLengthPrefix(t *testing.T) {
	data := []byte{recordFormatVersionCurrent, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, flagHasUser, 0xFF, 0xFF, 'x'}
	if _, err := Decode(data); !errors.Is(err, ErrCorruptRecord) {
		t.Fatalf("expected ErrCorruptRecord, got %v", err)
	}
}
