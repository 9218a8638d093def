package repository

import "github.com/dmitrijs2005/mindnote/internal/models"

// Subscribe returns a channel receiving a full snapshot after each change,
// and a cancel func. Slow readers only ever see the latest snapshot.
func (r *Repository) Subscribe() (<-chan []models.Workspace, func()) {
	ch := make(chan []models.Workspace, 1)

	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		if c, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(c)
		}
		r.subMu.Unlock()
	}
	return ch, cancel
}

// publish delivers the state committed as generation gen. A mutation that
// finished later may publish first; its older snapshot is then dropped.
// Every subscriber gets its own copy.
func (r *Repository) publish(snapshot []models.Workspace, gen uint64) {
	models.SortForDrawer(snapshot)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	if gen <= r.published {
		return
	}
	r.published = gen
	for _, ch := range r.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cloneList(snapshot):
		default:
		}
	}
}
