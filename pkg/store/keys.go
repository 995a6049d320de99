package store

import "fmt"

// Key layout. All feed-ordered namespaces embed a sortable suffix of the
// form <unix_nano %020d>-<id> so a lexicographic scan is a time scan and
// ties break deterministically on the identity component.
//
//   user:<id>                                -> user JSON
//   follow:<viewer>:<author>                 -> follow marker
//   post:<id>                                -> post JSON (canonical record)
//   author:<author>:post:<sort>              -> post ID (authored index)
//   reposter:<user>:repost:<sort>            -> post ID (repost index)
//   like:<postID>:<viewer>                   -> like marker
//   repostmark:<postID>:<viewer>             -> repost marker (value: sort suffix)
//   comment:<postID>:<sort>                  -> comment JSON
//   conv:<id>:meta                           -> conversation JSON
//   conv:<id>:msg:<sort>                     -> message JSON
//   convidx:<user>:<convID>                  -> membership marker

// sortSuffix builds the sortable "<ts>-<id>" component.
func sortSuffix(ts int64, id string) string {
	return fmt.Sprintf("%020d-%s", ts, id)
}

func userKey(id string) []byte { return []byte("user:" + id) }

func followKey(viewer, author string) []byte {
	return []byte("follow:" + viewer + ":" + author)
}

func followPrefix(viewer string) []byte { return []byte("follow:" + viewer + ":") }

func postKey(id string) []byte { return []byte("post:" + id) }

func authorIdxKey(author string, ts int64, postID string) []byte {
	return []byte("author:" + author + ":post:" + sortSuffix(ts, postID))
}

func authorIdxPrefix(author string) []byte { return []byte("author:" + author + ":post:") }

func reposterIdxKey(user string, ts int64, postID string) []byte {
	return []byte("reposter:" + user + ":repost:" + sortSuffix(ts, postID))
}

func reposterIdxPrefix(user string) []byte { return []byte("reposter:" + user + ":repost:") }

func likeKey(postID, viewer string) []byte { return []byte("like:" + postID + ":" + viewer) }

func likePrefix(postID string) []byte { return []byte("like:" + postID + ":") }

func repostMarkKey(postID, viewer string) []byte {
	return []byte("repostmark:" + postID + ":" + viewer)
}

func repostMarkPrefix(postID string) []byte { return []byte("repostmark:" + postID + ":") }

func commentKey(postID string, ts int64, commentID string) []byte {
	return []byte("comment:" + postID + ":" + sortSuffix(ts, commentID))
}

func commentPrefix(postID string) []byte { return []byte("comment:" + postID + ":") }

func convMetaKey(convID string) []byte { return []byte("conv:" + convID + ":meta") }

func convMsgKey(convID string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("conv:%s:msg:%020d-%06d", convID, ts, seq))
}

func convMsgPrefix(convID string) []byte { return []byte("conv:" + convID + ":msg:") }

func convIdxKey(user, convID string) []byte {
	return []byte("convidx:" + user + ":" + convID)
}

func convIdxPrefix(user string) []byte { return []byte("convidx:" + user + ":") }

// prefixUpperBound returns the smallest key greater than every key with the
// given prefix, for use as an exclusive pebble UpperBound.
func prefixUpperBound(prefix []byte) []byte {
	ub := append([]byte(nil), prefix...)
	for i := len(ub) - 1; i >= 0; i-- {
		if ub[i] < 0xff {
			ub[i]++
			return ub[:i+1]
		}
	}
	return nil
}
