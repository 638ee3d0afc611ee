package cache

import (
	"fmt"
	"strings"

	"github.com/ButyrinIA/forum/internal/models"
)

type Kind string

const (
	KindPosts    Kind = "posts"
	KindPost     Kind = "post"
	KindComments Kind = "comments"
	KindUsers    Kind = "users"
)

// Key - сравнимый ключ записи кэша: (вид сущности, id или фильтр)
type Key struct {
	Kind Kind
	ID   models.ID
}

func PostsKey() Key {
	return Key{Kind: KindPosts}
}

func PostKey(id models.ID) Key {
	return Key{Kind: KindPost, ID: id}
}

func CommentsKey(postID models.ID) Key {
	return Key{Kind: KindComments, ID: postID}
}

func UsersKey() Key {
	return Key{Kind: KindUsers}
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + string(k.ID)
}

// ParseKey разбирает форму, которую выдает Key.String
func ParseKey(s string) (Key, error) {
	kind, id, _ := strings.Cut(s, ":")
	k := Key{Kind: Kind(kind), ID: models.ID(id)}
	switch k.Kind {
	case KindPosts, KindUsers:
		if k.ID != "" {
			return Key{}, fmt.Errorf("key %q takes no id", s)
		}
	case KindPost, KindComments:
		if k.ID == "" {
			return Key{}, fmt.Errorf("key %q requires an id", s)
		}
	default:
		return Key{}, fmt.Errorf("unknown key kind %q", kind)
	}
	return k, nil
}
