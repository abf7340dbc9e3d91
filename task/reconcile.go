package task

// Reconciler merges the completed-task list from the latest successful poll
// with task deltas pushed since the project was selected. A task's status
// only ever moves toward completed: once any source reports it completed,
// nothing later can take it back.
//
// Reconciler is not safe for concurrent use; the engine's event loop is its
// only writer.
type Reconciler struct {
	polled []Task

	live      map[string]Task
	liveOrder []string

	// completed records survive a later poll that omits them
	sticky      map[string]Task
	stickyOrder []string

	// first-observed order across recomputes
	seen    []string
	seenSet map[string]struct{}

	merged map[string]Task
	order  []string
}

// NewReconciler returns an empty Reconciler.
func NewReconciler() *Reconciler {
	r := &Reconciler{}
	r.Reset()
	return r
}

// Reset drops every task, including pushed ones. Called on project switch
// before any event of the new project is applied.
func (r *Reconciler) Reset() {
	r.polled = nil
	r.live = make(map[string]Task)
	r.liveOrder = nil
	r.sticky = make(map[string]Task)
	r.stickyOrder = nil
	r.seen = nil
	r.seenSet = make(map[string]struct{})
	r.merged = make(map[string]Task)
	r.order = nil
}

// ApplyPoll replaces the poll-derived list and recomputes.
func (r *Reconciler) ApplyPoll(tasks []Task) {
	r.polled = append(r.polled[:0:0], tasks...)
	r.recompute()
}

// ApplyUpdate appends one pushed delta and recomputes. A delta for a known
// id replaces the stored one unless that would undo a completion.
func (r *Reconciler) ApplyUpdate(t Task) {
	if t.ID == "" {
		return
	}
	prev, ok := r.live[t.ID]
	switch {
	case !ok:
		r.liveOrder = append(r.liveOrder, t.ID)
		r.live[t.ID] = t
	case prev.Status == StatusCompleted && t.Status != StatusCompleted:
	default:
		r.live[t.ID] = t
	}
	r.recompute()
}

func (r *Reconciler) recompute() {
	merged := make(map[string]Task, len(r.merged))
	var arrived []string

	put := func(t Task) {
		if t.ID == "" {
			return
		}
		if _, ok := merged[t.ID]; !ok {
			merged[t.ID] = t
			arrived = append(arrived, t.ID)
			return
		}
		if t.Status == StatusCompleted {
			merged[t.ID] = t
		}
	}

	for _, t := range r.polled {
		put(t)
	}
	for _, id := range r.liveOrder {
		put(r.live[id])
	}
	for _, id := range r.stickyOrder {
		cur, ok := merged[id]
		if ok && cur.Status == StatusCompleted {
			continue
		}
		if !ok {
			arrived = append(arrived, id)
		}
		merged[id] = r.sticky[id]
	}

	for _, id := range arrived {
		if _, ok := r.seenSet[id]; !ok {
			r.seenSet[id] = struct{}{}
			r.seen = append(r.seen, id)
		}
		t := merged[id]
		if t.Status != StatusCompleted {
			continue
		}
		if _, ok := r.sticky[id]; !ok {
			r.stickyOrder = append(r.stickyOrder, id)
		}
		r.sticky[id] = t
	}

	order := make([]string, 0, len(merged))
	for _, id := range r.seen {
		if _, ok := merged[id]; ok {
			order = append(order, id)
		}
	}

	r.merged = merged
	r.order = order
}

// Get returns the reconciled task for id.
func (r *Reconciler) Get(id string) (Task, bool) {
	t, ok := r.merged[id]
	return t, ok
}

// Len is the number of reconciled tasks.
func (r *Reconciler) Len() int { return len(r.order) }

// Tasks returns the reconciled tasks in first-observed order.
func (r *Reconciler) Tasks() []Task {
	out := make([]Task, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.merged[id])
	}
	return out
}

// Map returns a copy of the reconciled taskID → Task mapping.
func (r *Reconciler) Map() map[string]Task {
	out := make(map[string]Task, len(r.merged))
	for k, v := range r.merged {
		out[k] = v
	}
	return out
}

// Pushed is the number of distinct tasks received from the subscription
// since the last Reset.
func (r *Reconciler) Pushed() int { return len(r.liveOrder) }
