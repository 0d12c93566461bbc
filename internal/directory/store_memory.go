package directory

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

// InMemoryStore keeps the directory in maps. It backs tests and local runs
// seeded from a YAML file.
type InMemoryStore struct {
	mu      sync.RWMutex
	items   map[id.ItemID]models.Item
	parties map[string]models.Party
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		items:   make(map[id.ItemID]models.Item),
		parties: make(map[string]models.Party),
	}
}

func (s *InMemoryStore) PutItem(item *models.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
}

func (s *InMemoryStore) PutParty(party *models.Party) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parties[party.ID] = *party
}

func (s *InMemoryStore) GetItem(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &item, nil
}

func (s *InMemoryStore) GetParty(_ context.Context, partyID string) (*models.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	party, ok := s.parties[partyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &party, nil
}

func (s *InMemoryStore) SetPartyActive(_ context.Context, partyID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	party, ok := s.parties[partyID]
	if !ok {
		return sentinel.ErrNotFound
	}
	party.Active = active
	s.parties[partyID] = party
	return nil
}

// Seed is the YAML shape of a directory fixture file.
type Seed struct {
	Parties []SeedParty `yaml:"parties"`
	Items   []SeedItem  `yaml:"items"`
}

type SeedParty struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Email     string `yaml:"email"`
	PublicKey string `yaml:"public_key"`
	Role      string `yaml:"role"`
	Active    *bool  `yaml:"active"`
}

type SeedItem struct {
	ID            string `yaml:"id"`
	OwnerID       string `yaml:"owner_id"`
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	DeliveryMode  string `yaml:"delivery_mode"`
	EncryptedData string `yaml:"encrypted_data"`
	EncryptedURL  string `yaml:"encrypted_url"`
	IV            string `yaml:"iv"`
	Active        *bool  `yaml:"active"`
}

// ParseSeed decodes and checks a YAML directory fixture. Omitted active
// flags default to true.
func ParseSeed(r io.Reader) ([]*models.Party, []*models.Item, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode directory seed: %w", err)
	}

	parties := make([]*models.Party, 0, len(seed.Parties))
	for i, p := range seed.Parties {
		role := models.Role(p.Role)
		if p.ID == "" || !role.IsValid() {
			return nil, nil, fmt.Errorf("seed party %d: id and a valid role are required", i)
		}
		parties = append(parties, &models.Party{
			ID:        p.ID,
			Name:      p.Name,
			Email:     p.Email,
			PublicKey: p.PublicKey,
			Role:      role,
			Active:    boolOr(p.Active, true),
		})
	}

	items := make([]*models.Item, 0, len(seed.Items))
	for i, it := range seed.Items {
		itemID, err := uuid.Parse(it.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("seed item %d: invalid id: %w", i, err)
		}
		ownerID, err := uuid.Parse(it.OwnerID)
		if err != nil {
			return nil, nil, fmt.Errorf("seed item %d: invalid owner_id: %w", i, err)
		}
		mode := models.DeliveryMode(it.DeliveryMode)
		if mode == "" {
			mode = models.DeliveryInline
		}
		if !mode.IsValid() {
			return nil, nil, fmt.Errorf("seed item %d: unknown delivery_mode %q", i, it.DeliveryMode)
		}
		if mode == models.DeliveryIndirect && it.EncryptedURL == "" {
			return nil, nil, fmt.Errorf("seed item %d: indirect items need encrypted_url", i)
		}
		items = append(items, &models.Item{
			ID:            id.ItemID(itemID),
			OwnerID:       id.OwnerID(ownerID),
			Name:          it.Name,
			Type:          it.Type,
			DeliveryMode:  mode,
			EncryptedData: it.EncryptedData,
			EncryptedURL:  it.EncryptedURL,
			IV:            it.IV,
			Active:        boolOr(it.Active, true),
		})
	}
	return parties, items, nil
}

// LoadSeed adds every party and item from a YAML fixture.
func (s *InMemoryStore) LoadSeed(r io.Reader) error {
	parties, items, err := ParseSeed(r)
	if err != nil {
		return err
	}
	for _, p := range parties {
		s.PutParty(p)
	}
	for _, it := range items {
		s.PutItem(it)
	}
	return nil
}

// LoadSeedFile is LoadSeed for a file path.
func (s *InMemoryStore) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}

// ParseSeedFile is ParseSeed for a file path.
func ParseSeedFile(path string) ([]*models.Party, []*models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open directory seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

var _ Store = (*InMemoryStore)(nil)
