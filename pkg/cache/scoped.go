package cache

// ScopedKeyer prefixes every key of an inner Keyer, giving each teacher or
// deployment its own namespace in a shared backend.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer if inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

func (k *ScopedKeyer) SnapshotKey(assignmentID, studentID string) string {
	return k.prefix + k.inner.SnapshotKey(assignmentID, studentID)
}

func (k *ScopedKeyer) FrameKey(snapshotHash string, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(snapshotHash, opts)
}

func (k *ScopedKeyer) ArtifactKey(frameHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(frameHash, opts)
}
