package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// maxNameSample bounds how many valid names a NotFoundError echoes back,
// so a typo against a thousand-entry catalog doesn't dump the whole list.
const maxNameSample = 5

// NotFoundError is returned when a combatant name has no catalog entry.
// Sample is a small, deterministically-ordered slice of valid names for
// user feedback (spec.md §4.1).
type NotFoundError struct {
	Name   string
	Sample []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("combatant %q not found, try one of: %s", e.Name, strings.Join(e.Sample, ", "))
}

// Catalog is an immutable, in-memory combatant + move table, built once at
// startup. Lookup is case-sensitive; callers that want forgiving lookup
// normalize before calling Get.
type Catalog struct {
	combatants map[string]*Combatant
	moves      map[string]*Move
	names      []string // sorted, cached for NotFoundError sampling
}

// New builds an empty catalog; use LoadCSV or the Add* methods to populate it.
func New() *Catalog {
	return &Catalog{
		combatants: make(map[string]*Combatant),
		moves:      make(map[string]*Move),
	}
}

// AddCombatant inserts or overwrites a combatant entry.
func (c *Catalog) AddCombatant(cb *Combatant) {
	if _, exists := c.combatants[cb.Name]; !exists {
		c.names = append(c.names, cb.Name)
		sort.Strings(c.names)
	}
	c.combatants[cb.Name] = cb
}

// AddMove inserts or overwrites a move table entry.
func (c *Catalog) AddMove(m *Move) {
	c.moves[m.Name] = m
}

// Get resolves a combatant by exact name. A miss returns *NotFoundError
// carrying a sample of valid names.
func (c *Catalog) Get(name string) (*Combatant, error) {
	cb, ok := c.combatants[name]
	if !ok {
		end := maxNameSample
		if end > len(c.names) {
			end = len(c.names)
		}
		return nil, &NotFoundError{Name: name, Sample: append([]string(nil), c.names[:end]...)}
	}
	return cb, nil
}

// Move resolves a move by exact name.
func (c *Catalog) Move(name string) (*Move, error) {
	m, ok := c.moves[name]
	if !ok {
		return nil, fmt.Errorf("move %q not found", name)
	}
	return m, nil
}

// Names returns all known combatant names, sorted.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// LoadCSV populates the catalog from two tabular files: combatants at
// combatantsPath (name,primary,secondary,hp,attack,defense,sp_attack,
// sp_defense,speed,moves — moves being a ";"-separated list of move
// names) and moves at movesPath (name,type,power,category). This is the
// external "tabular on-disk file" collaborator spec.md §1 treats as out of
// the core's scope; the core only depends on the Catalog type above.
func LoadCSV(combatantsPath, movesPath string) (*Catalog, error) {
	c := New()

	if err := loadMoves(c, movesPath); err != nil {
		return nil, fmt.Errorf("loading moves from %s: %w", movesPath, err)
	}
	if err := loadCombatants(c, combatantsPath); err != nil {
		return nil, fmt.Errorf("loading combatants from %s: %w", combatantsPath, err)
	}
	return c, nil
}

func loadMoves(c *Catalog, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if err := expectHeader(header, "name", "type", "power", "category"); err != nil {
		return err
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		power, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return fmt.Errorf("move %q: bad power %q: %w", rec[0], rec[2], err)
		}
		c.AddMove(&Move{
			Name:     rec[0],
			Type:     Element(rec[1]),
			Power:    power,
			Category: Category(strings.ToUpper(rec[3])),
		})
	}
	return nil
}

func loadCombatants(c *Catalog, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 10
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if err := expectHeader(header, "name", "primary", "secondary", "hp", "attack", "defense", "sp_attack", "sp_defense", "speed", "moves"); err != nil {
		return err
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		stats, err := parseStats(rec[3:9])
		if err != nil {
			return fmt.Errorf("combatant %q: %w", rec[0], err)
		}
		var moveNames []string
		if strings.TrimSpace(rec[9]) != "" {
			for _, m := range strings.Split(rec[9], ";") {
				moveNames = append(moveNames, strings.TrimSpace(m))
			}
		}
		c.AddCombatant(&Combatant{
			Name:      rec[0],
			Primary:   Element(rec[1]),
			Secondary: Element(strings.TrimSpace(rec[2])),
			Stats:     stats,
			MoveNames: moveNames,
		})
	}
	return nil
}

func parseStats(fields []string) (Stats, error) {
	vals := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return Stats{}, fmt.Errorf("bad stat %q: %w", f, err)
		}
		vals[i] = v
	}
	return Stats{
		HP: vals[0], Attack: vals[1], Defense: vals[2],
		SpAttack: vals[3], SpDefense: vals[4], Speed: vals[5],
	}, nil
}

func expectHeader(got []string, want ...string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i, w := range want {
		if strings.TrimSpace(got[i]) != w {
			return fmt.Errorf("column %d: expected %q, got %q", i, w, got[i])
		}
	}
	return nil
}
