package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mschirtzinger/habitvault/internal/tracker"
	"github.com/mschirtzinger/habitvault/internal/types"
)

// ItemUpdateData describes a change to one habit.
type ItemUpdateData struct {
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Action    string `json:"action"` // added, updated, archived, deleted, toggled, noted
	Date      string `json:"date,omitempty"`
	Completed bool   `json:"completed,omitempty"`
	Note      string `json:"note,omitempty"`
}

// ReloadCompleteData summarizes a reload.
type ReloadCompleteData struct {
	Items   int `json:"items"`
	Entries int `json:"entries"`
	Changed int `json:"changed"`
}

// ItemStats is one row of a stats message.
type ItemStats struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	Color          string `json:"color,omitempty"`
	Archived       bool   `json:"archived"`
	CompletedToday bool   `json:"completed_today"`
	types.Stats
}

// StatsData is the payload of a stats message.
type StatsData struct {
	Date           string      `json:"date"`
	Total          int         `json:"total"`
	Active         int         `json:"active"`
	CompletedToday int         `json:"completed_today"`
	Items          []ItemStats `json:"items"`
}

// EntryRequest is the payload of toggle and note requests. An empty date
// means today.
type EntryRequest struct {
	ItemID string `json:"item_id"`
	Date   string `json:"date,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Mutator applies client requests. *tracker.Tracker satisfies it.
type Mutator interface {
	Toggle(ctx context.Context, id, date string) (bool, error)
	SetNote(ctx context.Context, id, date, note string) error
}

// Handler turns reloads and tracker changes into dashboard messages. It
// keeps the last collection it saw so it can diff reloads and compute stats.
type Handler struct {
	server *Server
	logger *log.Logger
	now    func() time.Time

	mu   sync.Mutex
	coll *types.Collection
}

// NewHandler creates a handler broadcasting on server and installs its
// stats snapshot as the server's welcome message.
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		server: server,
		logger: logger,
		now:    time.Now,
		coll:   types.NewCollection(),
	}
	server.SetWelcome(func() Message {
		h.mu.Lock()
		defer h.mu.Unlock()
		msg, _ := h.statsMessage()
		return msg
	})
	return h
}

// Reset sets the collection the next reload is compared against, without
// broadcasting.
func (h *Handler) Reset(c *types.Collection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.coll = c.Clone()
}

// OnReload is a daemon listener. It broadcasts an item_update for every
// habit that differs from the previous collection, then reload_complete and
// stats.
func (h *Handler) OnReload(c *types.Collection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.coll
	h.coll = c.Clone()

	changed := diffItems(prev, h.coll)
	for _, upd := range changed {
		h.send(MessageTypeItemUpdate, upd)
	}
	h.send(MessageTypeReloadComplete, ReloadCompleteData{
		Items:   len(h.coll.Items),
		Entries: len(h.coll.Entries),
		Changed: len(changed),
	})
	h.logger.Printf("Reload: %d items, %d entries, %d changed", len(h.coll.Items), len(h.coll.Entries), len(changed))
	h.broadcastStats()
}

// OnChange is a tracker subscriber. It applies the change to the handler's
// copy of the collection and broadcasts item_update and stats.
func (h *Handler) OnChange(ch tracker.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := ItemUpdateData{
		ItemID: ch.Item.ID,
		Name:   ch.Item.Name,
		Action: ch.Kind.String(),
		Date:   ch.Date,
	}

	switch ch.Kind {
	case tracker.ChangeDeleted:
		h.coll.RemoveItem(ch.Item.ID)
	case tracker.ChangeToggled, tracker.ChangeNoted:
		data.Completed = ch.Entry.Completed
		data.Note = ch.Entry.Note
		if e := h.coll.Entry(ch.Item.ID, ch.Date); e != nil {
			*e = ch.Entry
		} else {
			h.coll.Entries = append(h.coll.Entries, ch.Entry)
		}
	default:
		if it := h.coll.Item(ch.Item.ID); it != nil {
			*it = ch.Item
		} else {
			h.coll.Items = append(h.coll.Items, ch.Item)
		}
	}

	h.send(MessageTypeItemUpdate, data)
	h.broadcastStats()
}

// Accept lets clients change entries through m. The resulting changes
// reach clients through OnChange once m reports them, so m's change feed
// must be subscribed as well.
func (h *Handler) Accept(m Mutator) {
	h.server.SetRequestHandler(func(ctx context.Context, msg Message) error {
		return h.apply(ctx, m, msg)
	})
}

func (h *Handler) apply(ctx context.Context, m Mutator, msg Message) error {
	var req EntryRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return fmt.Errorf("invalid %s request: %w", msg.Type, err)
	}
	if req.ItemID == "" {
		return fmt.Errorf("%s request needs item_id", msg.Type)
	}
	if req.Date == "" {
		req.Date = types.FormatDate(h.now())
	}
	if !types.ValidDate(req.Date) {
		return fmt.Errorf("invalid date %q", req.Date)
	}

	switch msg.Type {
	case MessageTypeToggle:
		_, err := m.Toggle(ctx, req.ItemID, req.Date)
		return err
	case MessageTypeNote:
		return m.SetNote(ctx, req.ItemID, req.Date, req.Note)
	default:
		return fmt.Errorf("unknown request type %q", msg.Type)
	}
}

func (h *Handler) stats() StatsData {
	now := h.now()
	today := types.FormatDate(now)

	out := StatsData{
		Date:  today,
		Total: len(h.coll.Items),
		Items: make([]ItemStats, 0, len(h.coll.Items)),
	}
	for _, it := range h.coll.Items {
		done := h.coll.IsCompleted(it.ID, today)
		if !it.Archived {
			out.Active++
			if done {
				out.CompletedToday++
			}
		}
		out.Items = append(out.Items, ItemStats{
			ItemID:         it.ID,
			Name:           it.Name,
			Color:          it.Color,
			Archived:       it.Archived,
			CompletedToday: done,
			Stats:          h.coll.StatsFor(it, now),
		})
	}
	return out
}

func (h *Handler) statsMessage() (Message, error) {
	data, err := json.Marshal(h.stats())
	if err != nil {
		return Message{Type: MessageTypeStats, Timestamp: time.Now()}, err
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}, nil
}

func (h *Handler) broadcastStats() {
	msg, err := h.statsMessage()
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	h.server.Broadcast(msg)
}

func (h *Handler) send(typ MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: time.Now(), Data: data})
}

// diffItems reports habits added, removed or changed between two
// collections. Entry changes count as "updated".
func diffItems(prev, next *types.Collection) []ItemUpdateData {
	var out []ItemUpdateData

	for _, it := range next.Items {
		old := prev.Item(it.ID)
		switch {
		case old == nil:
			out = append(out, ItemUpdateData{ItemID: it.ID, Name: it.Name, Action: "added"})
		case old.Archived != it.Archived:
			out = append(out, ItemUpdateData{ItemID: it.ID, Name: it.Name, Action: "archived"})
		case *old != it || !sameEntries(prev.EntriesFor(it.ID), next.EntriesFor(it.ID)):
			out = append(out, ItemUpdateData{ItemID: it.ID, Name: it.Name, Action: "updated"})
		}
	}
	for _, it := range prev.Items {
		if next.Item(it.ID) == nil {
			out = append(out, ItemUpdateData{ItemID: it.ID, Name: it.Name, Action: "deleted"})
		}
	}
	return out
}

func sameEntries(a, b []types.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
