package svcmock

// rankingKey derives a total order over registrations from the ranking
// and identity properties: higher ranks sort first, ties break on lower
// identity, i.e. the earlier registration.
type rankingKey struct {
	rank int
	id   int64
}

func rankingKeyOf(props Properties) rankingKey {
	return rankingKey{
		rank: intProperty(props, PropServiceRanking, 0),
		id:   int64Property(props, PropServiceID, 0),
	}
}

// less reports whether k sorts before other.
func (k rankingKey) less(other rankingKey) bool {
	if k.rank != other.rank {
		return k.rank > other.rank
	}
	return k.id < other.id
}

// intProperty reads a numeric property, tolerating any integer or float
// width. Missing keys and non-numeric values yield the default.
func intProperty(props Properties, key string, def int) int {
	if n, ok := asInt64(props[key]); ok {
		return int(n)
	}
	return def
}

func int64Property(props Properties, key string, def int64) int64 {
	if n, ok := asInt64(props[key]); ok {
		return n
	}
	return def
}

func asInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
