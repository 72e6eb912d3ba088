package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"askbox/internal/models"
	"askbox/internal/repository"
)

func trimName(name string) string {
	return strings.TrimSpace(name)
}

// uniqueStrings drops empty and repeated ids and keeps first-seen order.
func uniqueStrings(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// EncodeCursor renders a keyset position as an opaque URL-safe token.
func EncodeCursor(c repository.PostCursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + strconv.FormatUint(uint64(c.ID), 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page.
func DecodeCursor(token string) (*repository.PostCursor, error) {
	if token == "" {
		return nil, nil
	}
	invalid := models.NewValidationError(fmt.Sprintf("invalid cursor %q", token))

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, invalid
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, invalid
	}
	ns, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, invalid
	}
	postID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || postID == 0 {
		return nil, invalid
	}
	return &repository.PostCursor{
		CreatedAt: time.Unix(0, ns).UTC(),
		ID:        uint(postID),
	}, nil
}
