package command

import (
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/zeebo/blake3"
)

// AuthParam carries the request digest when authentication is enabled.
const AuthParam = "auth"

// Sign returns a copy of req carrying a digest of its receiver and
// parameters keyed by token.
func Sign(req Request, token []byte) Request {
	params := make(map[string]string, len(req.Params)+1)
	for k, v := range req.Params {
		if k != AuthParam {
			params[k] = v
		}
	}
	out := Request{Receiver: req.Receiver, Params: params}
	out.Params[AuthParam] = hex.EncodeToString(digest(token, out))
	return out
}

// Verify reports whether req was signed with token and strips the auth
// parameter from req.
func Verify(req *Request, token []byte) bool {
	got, err := hex.DecodeString(req.Params[AuthParam])
	if err != nil || len(got) == 0 {
		return false
	}
	delete(req.Params, AuthParam)
	return subtle.ConstantTimeCompare(got, digest(token, *req)) == 1
}

// digest hashes the receiver and the sorted parameters, auth excluded.
// Every field is prefixed with its uvarint length so that field boundaries
// cannot move.
func digest(token []byte, req Request) []byte {
	key := blake3.Sum256(token)
	h, err := blake3.NewKeyed(key[:])
	if err != nil {
		// unreachable: key is always 32 bytes
		panic(err)
	}
	writeField(h, req.Receiver)
	for _, k := range sortedKeys(req.Params) {
		if k == AuthParam {
			continue
		}
		writeField(h, k)
		writeField(h, req.Params[k])
	}
	return h.Sum(nil)
}

func writeField(h hash.Hash, s string) {
	h.Write(binary.AppendUvarint(nil, uint64(len(s))))
	h.Write([]byte(s))
}
