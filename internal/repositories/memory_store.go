package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mroshb/colony_engine/internal/models"
	"github.com/mroshb/colony_engine/pkg/errors"
)

// MemoryStore keeps every village in memory. A transaction works on a private
// copy of one village and swaps it in on success, so a failed callback leaves
// no trace.
type MemoryStore struct {
	mu       sync.Mutex
	seq      uint
	villages map[uint]*villageData
	locks    map[uint]*sync.Mutex
	events   []models.GameEvent
}

type villageData struct {
	village    models.Village
	ledger     *models.ResourceLedger
	buildings  map[uint]models.BuildingInstance
	research   map[string]models.ResearchState
	missions   map[uint]models.Mission
	characters map[uint]models.Character
	equipment  map[uint]models.Equipment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		villages: make(map[uint]*villageData),
		locks:    make(map[uint]*sync.Mutex),
	}
}

func (d *villageData) clone() *villageData {
	cp := &villageData{
		village:    d.village,
		buildings:  make(map[uint]models.BuildingInstance, len(d.buildings)),
		research:   make(map[string]models.ResearchState, len(d.research)),
		missions:   make(map[uint]models.Mission, len(d.missions)),
		characters: make(map[uint]models.Character, len(d.characters)),
		equipment:  make(map[uint]models.Equipment, len(d.equipment)),
	}
	if d.ledger != nil {
		l := d.ledger.Clone()
		cp.ledger = &l
	}
	for k, v := range d.buildings {
		cp.buildings[k] = v
	}
	for k, v := range d.research {
		cp.research[k] = v.Clone()
	}
	for k, v := range d.missions {
		cp.missions[k] = v.Clone()
	}
	for k, v := range d.characters {
		cp.characters[k] = v
	}
	for k, v := range d.equipment {
		cp.equipment[k] = v
	}
	return cp
}

func (s *MemoryStore) nextID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

func (s *MemoryStore) lockFor(villageID uint) (*sync.Mutex, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.villages[villageID]; !ok {
		return nil, false
	}
	l, ok := s.locks[villageID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[villageID] = l
	}
	return l, true
}

func (s *MemoryStore) CreateVillage(ctx context.Context, village *models.Village, init func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	village.ID = s.nextID()
	now := time.Now().UTC()
	village.CreatedAt, village.UpdatedAt = now, now

	data := &villageData{
		village:    *village,
		buildings:  map[uint]models.BuildingInstance{},
		research:   map[string]models.ResearchState{},
		missions:   map[uint]models.Mission{},
		characters: map[uint]models.Character{},
		equipment:  map[uint]models.Equipment{},
	}
	tx := &memTx{store: s, data: data}
	if err := init(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.villages[village.ID] = data
	s.events = append(s.events, tx.events...)
	*village = data.village
	return nil
}

func (s *MemoryStore) WithVillage(ctx context.Context, villageID uint, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, ok := s.lockFor(villageID)
	if !ok {
		return errors.NotFound("village not found")
	}
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	current, ok := s.villages[villageID]
	if !ok {
		s.mu.Unlock()
		return errors.NotFound("village not found")
	}
	work := current.clone()
	s.mu.Unlock()

	tx := &memTx{store: s, data: work}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.villages[villageID] = work
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *MemoryStore) DueMissions(ctx context.Context, now time.Time) ([]EntityRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type due struct {
		ref      EntityRef
		deadline time.Time
	}
	var found []due
	for vid, d := range s.villages {
		for id, m := range d.missions {
			if m.Status == models.MissionInProgress && m.Deadline != nil && !m.Deadline.After(now) {
				found = append(found, due{EntityRef{VillageID: vid, ID: id}, *m.Deadline})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].deadline.Equal(found[j].deadline) {
			return found[i].ref.ID < found[j].ref.ID
		}
		return found[i].deadline.Before(found[j].deadline)
	})
	refs := make([]EntityRef, len(found))
	for i, f := range found {
		refs[i] = f.ref
	}
	return refs, nil
}

func (s *MemoryStore) DueResearch(ctx context.Context, now time.Time) ([]ResearchRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []ResearchRef
	for vid, d := range s.villages {
		for key, r := range d.research {
			if r.Status == models.ResearchInProgress && r.Deadline != nil && !r.Deadline.After(now) {
				refs = append(refs, ResearchRef{VillageID: vid, NodeKey: key})
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].VillageID < refs[j].VillageID })
	return refs, nil
}

func (s *MemoryStore) ProducingVillages(ctx context.Context) ([]uint, error) {
	return s.villagesWhere(func(d *villageData) bool {
		for _, b := range d.buildings {
			if b.Active {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) RegenVillages(ctx context.Context) ([]uint, error) {
	return s.villagesWhere(func(d *villageData) bool {
		for _, c := range d.characters {
			if !c.OnMission && c.CurrentHP > 0 && c.CurrentHP < c.MaxHP {
				return true
			}
		}
		return false
	}), nil
}

func (s *MemoryStore) villagesWhere(pred func(d *villageData) bool) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for id, d := range s.villages {
		if pred(d) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *MemoryStore) Events(ctx context.Context, villageID uint, limit int) ([]models.GameEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.GameEvent
	for i := len(s.events) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.events[i].VillageID == villageID {
			out = append(out, s.events[i])
		}
	}
	return out, nil
}

type memTx struct {
	store  *MemoryStore
	data   *villageData
	events []models.GameEvent
}

func (t *memTx) Village() *models.Village {
	v := t.data.village
	return &v
}

func (t *memTx) SaveVillage(v *models.Village) error {
	if v.ID != t.data.village.ID {
		return errors.NotFound("village not found")
	}
	v.UpdatedAt = time.Now().UTC()
	t.data.village = *v
	return nil
}

func (t *memTx) Ledger() (*models.ResourceLedger, error) {
	if t.data.ledger == nil {
		return nil, errors.NotFound("ledger not found")
	}
	l := t.data.ledger.Clone()
	return &l, nil
}

func (t *memTx) SaveLedger(l *models.ResourceLedger) error {
	if l.ID == 0 {
		l.ID = t.store.nextID()
	}
	l.VillageID = t.data.village.ID
	l.UpdatedAt = time.Now().UTC()
	cp := l.Clone()
	t.data.ledger = &cp
	return nil
}

func (t *memTx) Buildings() ([]models.BuildingInstance, error) {
	out := make([]models.BuildingInstance, 0, len(t.data.buildings))
	for _, b := range t.data.buildings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Building(id uint) (*models.BuildingInstance, error) {
	b, ok := t.data.buildings[id]
	if !ok {
		return nil, errors.NotFound("building not found")
	}
	return &b, nil
}

func (t *memTx) CreateBuilding(b *models.BuildingInstance) error {
	if err := b.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create building")
	}
	for _, other := range t.data.buildings {
		if other.X == b.X && other.Y == b.Y {
			return errors.New(errors.ErrCodeInternalError, "duplicate building cell")
		}
	}
	b.ID = t.store.nextID()
	b.VillageID = t.data.village.ID
	t.data.buildings[b.ID] = *b
	return nil
}

func (t *memTx) SaveBuilding(b *models.BuildingInstance) error {
	if _, ok := t.data.buildings[b.ID]; !ok {
		return errors.NotFound("building not found")
	}
	if err := b.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save building")
	}
	t.data.buildings[b.ID] = *b
	return nil
}

func (t *memTx) DeleteBuilding(id uint) error {
	if _, ok := t.data.buildings[id]; !ok {
		return errors.NotFound("building not found")
	}
	delete(t.data.buildings, id)
	return nil
}

func (t *memTx) ResearchStates() ([]models.ResearchState, error) {
	out := make([]models.ResearchState, 0, len(t.data.research))
	for _, r := range t.data.research {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateResearchStates(states []models.ResearchState) error {
	for i := range states {
		if _, dup := t.data.research[states[i].NodeKey]; dup {
			return errors.New(errors.ErrCodeInternalError, "duplicate research state "+states[i].NodeKey)
		}
		states[i].ID = t.store.nextID()
		states[i].VillageID = t.data.village.ID
		t.data.research[states[i].NodeKey] = states[i].Clone()
	}
	return nil
}

func (t *memTx) SaveResearchState(s *models.ResearchState) error {
	if _, ok := t.data.research[s.NodeKey]; !ok {
		return errors.NotFound("research state not found")
	}
	t.data.research[s.NodeKey] = s.Clone()
	return nil
}

func (t *memTx) Missions() ([]models.Mission, error) {
	out := make([]models.Mission, 0, len(t.data.missions))
	for _, m := range t.data.missions {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Mission(id uint) (*models.Mission, error) {
	m, ok := t.data.missions[id]
	if !ok {
		return nil, errors.NotFound("mission not found")
	}
	cp := m.Clone()
	return &cp, nil
}

func (t *memTx) CreateMission(m *models.Mission) error {
	m.ID = t.store.nextID()
	m.VillageID = t.data.village.ID
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	for i := range m.Participants {
		m.Participants[i].ID = t.store.nextID()
		m.Participants[i].MissionID = m.ID
	}
	t.data.missions[m.ID] = m.Clone()
	return nil
}

func (t *memTx) SaveMission(m *models.Mission) error {
	stored, ok := t.data.missions[m.ID]
	if !ok {
		return errors.NotFound("mission not found")
	}
	cp := m.Clone()
	cp.Participants = stored.Participants
	t.data.missions[m.ID] = cp
	return nil
}

func (t *memTx) DeleteMission(id uint) error {
	if _, ok := t.data.missions[id]; !ok {
		return errors.NotFound("mission not found")
	}
	delete(t.data.missions, id)
	return nil
}

func (t *memTx) Characters() ([]models.Character, error) {
	out := make([]models.Character, 0, len(t.data.characters))
	for _, c := range t.data.characters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) Character(id uint) (*models.Character, error) {
	c, ok := t.data.characters[id]
	if !ok {
		return nil, errors.NotFound("character not found")
	}
	return &c, nil
}

func (t *memTx) CreateCharacter(c *models.Character) error {
	if err := c.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create character")
	}
	c.ID = t.store.nextID()
	c.VillageID = t.data.village.ID
	t.data.characters[c.ID] = *c
	return nil
}

func (t *memTx) SaveCharacter(c *models.Character) error {
	if _, ok := t.data.characters[c.ID]; !ok {
		return errors.NotFound("character not found")
	}
	if err := c.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save character")
	}
	t.data.characters[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCharacter(id uint) error {
	if _, ok := t.data.characters[id]; !ok {
		return errors.NotFound("character not found")
	}
	delete(t.data.characters, id)
	for eid, e := range t.data.equipment {
		if e.CharacterID == id {
			delete(t.data.equipment, eid)
		}
	}
	return nil
}

func (t *memTx) EquipmentItems() ([]models.Equipment, error) {
	out := make([]models.Equipment, 0, len(t.data.equipment))
	for _, e := range t.data.equipment {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) EquipmentItem(id uint) (*models.Equipment, error) {
	e, ok := t.data.equipment[id]
	if !ok {
		return nil, errors.NotFound("equipment not found")
	}
	return &e, nil
}

func (t *memTx) CreateEquipment(e *models.Equipment) error {
	if _, ok := t.data.characters[e.CharacterID]; !ok {
		return errors.NotFound("character not found")
	}
	if err := e.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create equipment")
	}
	e.ID = t.store.nextID()
	e.VillageID = t.data.village.ID
	t.data.equipment[e.ID] = *e
	return nil
}

func (t *memTx) SaveEquipment(e *models.Equipment) error {
	if _, ok := t.data.equipment[e.ID]; !ok {
		return errors.NotFound("equipment not found")
	}
	if _, ok := t.data.characters[e.CharacterID]; !ok {
		return errors.NotFound("character not found")
	}
	if err := e.BeforeSave(nil); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to save equipment")
	}
	t.data.equipment[e.ID] = *e
	return nil
}

func (t *memTx) DeleteEquipment(id uint) error {
	if _, ok := t.data.equipment[id]; !ok {
		return errors.NotFound("equipment not found")
	}
	delete(t.data.equipment, id)
	return nil
}

func (t *memTx) AppendEvent(e *models.GameEvent) error {
	e.ID = t.store.nextID()
	e.VillageID = t.data.village.ID
	t.events = append(t.events, *e)
	return nil
}
