package models

import (
	"fmt"
	"strings"
)

// Relation names accepted by the expand query parameter.
const (
	RelationPosts     = "posts"
	RelationManagers  = "managers"
	RelationFollowing = "following"
	RelationFollowers = "followers"
	RelationLikes     = "likes"
	RelationAuthor    = "author"
	RelationQuestion  = "question"
	RelationProfiles  = "profiles"
)

// ProfileExpand selects which profile relations are inlined.
type ProfileExpand struct {
	Posts     bool
	Managers  bool
	Following bool
	Followers bool
	Likes     bool
}

// Any reports whether at least one relation is selected.
func (e ProfileExpand) Any() bool {
	return e.Posts || e.Managers || e.Following || e.Followers || e.Likes
}

// PostExpand selects which post relations are inlined.
type PostExpand struct {
	Author   bool
	Likes    bool
	Question bool
}

// Any reports whether at least one relation is selected.
func (e PostExpand) Any() bool {
	return e.Author || e.Likes || e.Question
}

// UserExpand selects which user relations are inlined.
type UserExpand struct {
	Profiles bool
}

// ParseProfileExpand validates raw expand values against the profile relation set.
func ParseProfileExpand(values []string) (ProfileExpand, error) {
	var e ProfileExpand
	err := parseExpand("profile", values, map[string]*bool{
		RelationPosts:     &e.Posts,
		RelationManagers:  &e.Managers,
		RelationFollowing: &e.Following,
		RelationFollowers: &e.Followers,
		RelationLikes:     &e.Likes,
	})
	return e, err
}

// ParsePostExpand validates raw expand values against the post relation set.
func ParsePostExpand(values []string) (PostExpand, error) {
	var e PostExpand
	err := parseExpand("post", values, map[string]*bool{
		RelationAuthor:   &e.Author,
		RelationLikes:    &e.Likes,
		RelationQuestion: &e.Question,
	})
	return e, err
}

// ParseUserExpand validates raw expand values against the user relation set.
func ParseUserExpand(values []string) (UserExpand, error) {
	var e UserExpand
	err := parseExpand("user", values, map[string]*bool{
		RelationProfiles: &e.Profiles,
	})
	return e, err
}

// parseExpand accepts both repeated values and comma separated lists.
func parseExpand(entity string, values []string, flags map[string]*bool) error {
	for _, raw := range values {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			flag, ok := flags[name]
			if !ok {
				return NewValidationError(fmt.Sprintf("unknown %s relation %q in expand", entity, name))
			}
			*flag = true
		}
	}
	return nil
}
