package cache

import (
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	ProfileKeyPrefix   = "profile:%s"
	FollowingKeyPrefix = "profile:%s:following"
	PostKeyPrefix      = "post:%d"
)

const (
	UserTTL      = 5 * time.Minute
	ProfileTTL   = 10 * time.Minute
	FollowingTTL = 5 * time.Minute
	PostTTL      = 30 * time.Minute
)

// Cache names used as the metrics label.
const (
	NameUser      = "user"
	NameProfile   = "profile"
	NameFollowing = "following_ids"
	NamePost      = "post"
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// ProfileKey caches the bare profile row plus manager ids, never expanded relations.
func ProfileKey(profileID string) string {
	return fmt.Sprintf(ProfileKeyPrefix, profileID)
}

// FollowingKey caches the id list of profiles profileID follows.
func FollowingKey(profileID string) string {
	return fmt.Sprintf(FollowingKeyPrefix, profileID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}
