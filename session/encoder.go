package session

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const recordFormatVersionCurrent = 2

const (
	flagHasUser byte = 1 << iota
)

// MaxEncodedCookieSize bounds an encoded record so it fits a browser cookie.
const MaxEncodedCookieSize = 3800

// ErrCorruptRecord is returned when a stored record cannot be decoded.
var ErrCorruptRecord = errors.New("session record corrupt")

// Encode serializes r into the versioned binary record format.
func Encode(r Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	if len(r.Token) > 0xFFFF {
		return nil, errors.New("token too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Token))); err != nil {
		return nil, err
	}
	buf.WriteString(r.Token)

	var expires int64
	if !r.ExpiresAt.IsZero() {
		expires = r.ExpiresAt.UnixNano()
	}
	if err := binary.Write(&buf, binary.BigEndian, expires); err != nil {
		return nil, err
	}

	if r.User == nil {
		buf.WriteByte(0)
		return buf.Bytes(), nil
	}
	buf.WriteByte(flagHasUser)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"user id", r.User.ID},
		{"username", r.User.Username},
		{"avatar", r.User.Avatar},
	} {
		if err := writeString(&buf, field.name, field.value); err != nil {
			return nil, err
		}
	}

	roles := NewRoleSet(r.User.Roles...)
	if len(roles) > 0xFFFF {
		return nil, errors.New("too many roles")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(roles))); err != nil {
		return nil, err
	}
	for _, role := range roles {
		if err := writeString(&buf, "role", role); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses the binary record format.
func Decode(data []byte) (Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if version != recordFormatVersionCurrent {
		return Record{}, fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, version)
	}

	var r Record
	var tokenLen uint16
	if err := binary.Read(reader, binary.BigEndian, &tokenLen); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	token := make([]byte, tokenLen)
	if _, err := io.ReadFull(reader, token); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	r.Token = string(token)

	var expires int64
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if expires != 0 {
		r.ExpiresAt = time.Unix(0, expires)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if flags&flagHasUser == 0 {
		if err := trailing(reader); err != nil {
			return Record{}, err
		}
		return r, nil
	}

	u := &User{}
	for _, dst := range []*string{&u.ID, &u.Username, &u.Avatar} {
		if *dst, err = readString(reader); err != nil {
			return Record{}, err
		}
	}

	var roleCount uint16
	if err := binary.Read(reader, binary.BigEndian, &roleCount); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	roles := make([]string, 0, min(int(roleCount), reader.Len()/2))
	for i := 0; i < int(roleCount); i++ {
		role, err := readString(reader)
		if err != nil {
			return Record{}, err
		}
		roles = append(roles, role)
	}
	u.Roles = NewRoleSet(roles...)
	r.User = u

	if err := trailing(reader); err != nil {
		return Record{}, err
	}
	return r, nil
}

// EncodeString encodes r for transport in a cookie value.
func EncodeString(r Record) (string, error) {
	raw, err := Encode(r)
	if err != nil {
		return "", err
	}
	out := base64.RawURLEncoding.EncodeToString(raw)
	if len(out) > MaxEncodedCookieSize {
		return "", errors.New("encoded session record exceeds cookie size")
	}
	return out, nil
}

// DecodeString reverses EncodeString.
func DecodeString(s string) (Record, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return Decode(raw)
}

func writeString(buf *bytes.Buffer, name, value string) error {
	if len(value) > 0xFFFF {
		return fmt.Errorf("%s too long", name)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(value))); err != nil {
		return err
	}
	buf.WriteString(value)
	return nil
}

func readString(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if int(n) > reader.Len() {
		return "", fmt.Errorf("%w: string length %d exceeds remaining %d bytes", ErrCorruptRecord, n, reader.Len())
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(reader, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return string(b), nil
}

func trailing(reader *bytes.Reader) error {
	if reader.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorruptRecord, reader.Len())
	}
	return nil
}
