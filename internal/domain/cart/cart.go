// Package cart keeps the shopping cart of a storefront session and enforces
// that no line ever asks for more units than the product's stock buckets hold.
package cart

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/clubwear/storefront/internal/domain/product"
	"github.com/shopspring/decimal"
)

// Key identifies a cart line. An empty Color means no color was selected.
type Key struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// Line is one row of the cart. Product is a snapshot taken when the line was
// last added to, not a live view of the catalog.
type Line struct {
	Product  product.Product `json:"product"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Quantity int             `json:"quantity"`
}

// Key returns the identity of the line
func (l Line) Key() Key {
	return Key{ProductID: l.Product.ID, Size: l.Size, Color: l.Color}
}

// UnitPrice is the effective unit price of the snapshot product
func (l Line) UnitPrice() decimal.Decimal {
	return l.Product.EffectiveUnitPrice()
}

// Subtotal is UnitPrice times Quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Available is the stock the snapshot product holds for this line's variant
func (l Line) Available() int {
	return l.Product.AvailableStock(l.Size, l.Color)
}

func (l Line) clone() Line {
	l.Product = *l.Product.Clone()
	return l
}

// State is the serializable form of a cart. Items keep insertion order.
type State struct {
	Items      []Line `json:"items"`
	DrawerOpen bool   `json:"drawerOpen"`
}

func (s State) clone() State {
	out := State{Items: make([]Line, len(s.Items)), DrawerOpen: s.DrawerOpen}
	for i, line := range s.Items {
		out.Items[i] = line.clone()
	}
	return out
}

// Validate checks the invariants a rehydrated state must hold
func (s State) Validate() error {
	seen := make(map[Key]struct{}, len(s.Items))
	for i, line := range s.Items {
		if line.Product.ID == "" {
			return fmt.Errorf("%w: line %d has no product", ErrInvalidState, i)
		}
		if line.Size == "" {
			return fmt.Errorf("%w: line %d has no size", ErrInvalidState, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d has quantity %d", ErrInvalidState, i, line.Quantity)
		}
		if _, dup := seen[line.Key()]; dup {
			return fmt.Errorf("%w: line %d duplicates %+v", ErrInvalidState, i, line.Key())
		}
		if available := line.Available(); line.Quantity > available {
			return fmt.Errorf("%w: line %d quantity %d exceeds stock %d", ErrInvalidState, i, line.Quantity, available)
		}
		seen[line.Key()] = struct{}{}
	}
	return nil
}

// Manager owns a cart state. Every operation runs under one mutex because
// each one checks stock before it writes.
type Manager struct {
	mu    sync.Mutex
	state State
}

// NewManager returns an empty cart with the drawer closed
func NewManager() *Manager {
	return &Manager{state: State{Items: []Line{}}}
}

// Restore rehydrates a cart from a previously serialized state
func Restore(s State) (*Manager, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{state: s.clone()}
	return m, nil
}

// AddItem adds quantity units of the product variant, merging into an existing
// line. The merged quantity must fit the product's matching stock. On success
// the line snapshot is refreshed from p and the drawer opens.
func (m *Manager) AddItem(p *product.Product, size, color string, quantity int) error {
	if p == nil || p.ID == "" {
		return ErrInvalidProduct
	}
	if size == "" {
		return ErrInvalidVariant
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{ProductID: p.ID, Size: size, Color: color}
	idx := m.indexOf(key)

	existing := 0
	if idx >= 0 {
		existing = m.state.Items[idx].Quantity
	}

	newQuantity := existing + quantity
	available := p.AvailableStock(size, color)
	if newQuantity > available {
		return &StockError{ProductID: p.ID, Size: size, Color: color, Requested: newQuantity, Available: available}
	}

	line := Line{Product: *p.Clone(), Size: size, Color: color, Quantity: newQuantity}
	if idx >= 0 {
		m.state.Items[idx] = line
	} else {
		m.state.Items = append(m.state.Items, line)
	}
	m.state.DrawerOpen = true
	return nil
}

// UpdateQuantity sets the absolute quantity of an existing line. A quantity of
// zero or less removes the line and always succeeds.
func (m *Manager) UpdateQuantity(productID, size, color string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := Key{ProductID: productID, Size: size, Color: color}
	if quantity <= 0 {
		m.removeLocked(key)
		return nil
	}

	idx := m.indexOf(key)
	if idx < 0 {
		return ErrLineNotFound
	}

	line := &m.state.Items[idx]
	if available := line.Available(); quantity > available {
		return &StockError{ProductID: productID, Size: size, Color: color, Requested: quantity, Available: available}
	}
	line.Quantity = quantity
	return nil
}

// RemoveItem drops the matching line; removing a missing line is a no-op
func (m *Manager) RemoveItem(productID, size, color string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(Key{ProductID: productID, Size: size, Color: color})
}

// Clear empties the cart. The drawer flag is left as is.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Items = []Line{}
}

// Total sums the effective unit price times quantity of every line
func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := decimal.Zero
	for _, line := range m.state.Items {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ItemCount counts units, not lines
func (m *Manager) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, line := range m.state.Items {
		count += line.Quantity
	}
	return count
}

// LineCount counts distinct lines
func (m *Manager) LineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.Items)
}

// Lines returns a copy of the lines in insertion order
func (m *Manager) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone().Items
}

// Line returns a copy of the line with the given key
func (m *Manager) Line(key Key) (Line, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(key)
	if idx < 0 {
		return Line{}, false
	}
	return m.state.Items[idx].clone(), true
}

// DrawerOpen reports whether the cart drawer should be shown
func (m *Manager) DrawerOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DrawerOpen
}

// SetDrawerOpen shows or hides the cart drawer
func (m *Manager) SetDrawerOpen(open bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.DrawerOpen = open
}

// Snapshot returns a deep copy of the current state
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// MarshalJSON encodes the cart as its State
func (m *Manager) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// UnmarshalJSON replaces the cart with a decoded State after validating it
func (m *Manager) UnmarshalJSON(data []byte) error {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if s.Items == nil {
		s.Items = []Line{}
	}
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	return nil
}

func (m *Manager) indexOf(key Key) int {
	for i, line := range m.state.Items {
		if line.Key() == key {
			return i
		}
	}
	return -1
}

func (m *Manager) removeLocked(key Key) {
	idx := m.indexOf(key)
	if idx < 0 {
		return
	}
	m.state.Items = append(m.state.Items[:idx], m.state.Items[idx+1:]...)
}
