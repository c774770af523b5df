package quic

import "github.com/rs/xid"

// Path represents the network path a packet was sent on. Migration policy
// itself is out of scope (§1 Non-goals); the controller only needs a
// comparable identity to repoint packet descriptors at on repath (§4.10).
//
// The id is generated with xid rather than left as a bare pointer so that
// log lines and diagnostics (sanity_check, §5 memory accounting) can name a
// path without dereferencing it, the way runZeroInc-conniver/sockstats use
// xid to give ring-buffer entries a short, sortable, allocation-free
// identity.
type Path struct {
	ID xid.ID
}

// NewPath allocates a new path identity.
func NewPath() *Path {
	return &Path{ID: xid.New()}
}

func (p *Path) String() string {
	if p == nil {
		return "<nil>"
	}
	return p.ID.String()
}
