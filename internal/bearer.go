package internal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

const (
	bearerSeparator = "|"
	jtiSeparator    = "/"
)

var (
	ErrMalformedBearer = errors.New("malformed bearer token")
	ErrMalformedJTI    = errors.New("malformed token id")
)

// JoinBearer renders the wire form: signed + "|" + guardTag.
func JoinBearer(signed, guardTag string) string {
	return signed + bearerSeparator + guardTag
}

// SplitBearer splits on the first separator. Both parts must be non-empty.
// A compact JWS never contains "|", so any further separator lands in the
// tag and fails the hex/HMAC comparison later.
func SplitBearer(token string) (string, string, error) {
	signed, tag, ok := strings.Cut(token, bearerSeparator)
	if !ok || signed == "" || tag == "" {
		return "", "", ErrMalformedBearer
	}
	return signed, tag, nil
}

// GuardTag is hex(HMAC-SHA256(jti, secret)).
func GuardTag(jti string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(jti))
	return hex.EncodeToString(mac.Sum(nil))
}

// GuardTagEqual compares a presented tag against the expected tag for jti
// in constant time.
func GuardTagEqual(presented, jti string, secret []byte) bool {
	expected := GuardTag(jti, secret)
	return hmac.Equal([]byte(presented), []byte(expected))
}

// FormatJTI renders "<recordID>/<revision>".
func FormatJTI(recordID string, revision uint64) string {
	return recordID + jtiSeparator + strconv.FormatUint(revision, 10)
}

// ParseJTI splits a token id on its last separator. The revision must be a
// canonical base-10 unsigned integer.
func ParseJTI(jti string) (string, uint64, error) {
	idx := strings.LastIndex(jti, jtiSeparator)
	if idx <= 0 || idx == len(jti)-1 {
		return "", 0, ErrMalformedJTI
	}
	recordID, rawRevision := jti[:idx], jti[idx+1:]
	if len(rawRevision) > 1 && rawRevision[0] == '0' {
		return "", 0, ErrMalformedJTI
	}
	revision, err := strconv.ParseUint(rawRevision, 10, 64)
	if err != nil {
		return "", 0, ErrMalformedJTI
	}
	return recordID, revision, nil
}
