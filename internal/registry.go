package internal

import "sort"

// Registry holds one Party per code. It is not safe for concurrent use;
// the PartyManager goroutine owns it.
type Registry struct {
	parties map[PartyID]*Party
	newID   func() PartyID
}

func NewRegistry() *Registry {
	return &Registry{
		parties: make(map[PartyID]*Party),
		newID:   NewPartyID,
	}
}

// NewCode returns a code no live party uses.
func (r *Registry) NewCode() PartyID {
	for {
		id := r.newID()
		if _, taken := r.parties[id]; !taken {
			return id
		}
	}
}

func (r *Registry) Insert(p *Party) {
	r.parties[p.ID] = p
}

func (r *Registry) Get(id PartyID) (*Party, bool) {
	p, ok := r.parties[id]
	return p, ok
}

// Evict removes a party and reports whether it existed.
func (r *Registry) Evict(id PartyID) bool {
	if _, ok := r.parties[id]; !ok {
		return false
	}
	delete(r.parties, id)
	return true
}

func (r *Registry) Len() int {
	return len(r.parties)
}

// All returns every party ordered by code.
func (r *Registry) All() []*Party {
	out := make([]*Party, 0, len(r.parties))
	for _, p := range r.parties {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Public lists the parties that opted into discovery.
func (r *Registry) Public() []PublicPartyInfo {
	out := []PublicPartyInfo{}
	for _, p := range r.All() {
		if p.IsPublic {
			out = append(out, p.PublicInfo())
		}
	}
	return out
}
