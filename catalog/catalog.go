// Package catalog holds the static equipment and enemy stat tables consumed
// read-only by combat resolution and AI stepping.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type ItemKind uint8

const (
	KindUnknown ItemKind = iota
	KindWeapon
	KindShield
	KindArmor
)

func (k ItemKind) String() string {
	switch k {
	case KindWeapon:
		return "weapon"
	case KindShield:
		return "shield"
	case KindArmor:
		return "armor"
	default:
		return "unknown"
	}
}

type ArmorPiece uint8

const (
	PieceNone ArmorPiece = iota
	PieceHelmet
	PieceChestplate
	PieceGreaves
)

type WeaponStats struct {
	Damage      int     `yaml:"damage"`
	AttackSpeed float64 `yaml:"attack_speed"`
	Range       float64 `yaml:"range"`
	StaminaCost int     `yaml:"stamina_cost"`
	TwoHanded   bool    `yaml:"two_handed"`
}

type ShieldStats struct {
	// BlockPercent is the share of incoming damage absorbed, 0..100.
	BlockPercent int `yaml:"block_percent"`
	StaminaCost  int `yaml:"stamina_cost"`
}

type ArmorStats struct {
	RegenMultiplier float64 `yaml:"regen_multiplier"`
}

type EnemyStats struct {
	Size           float64 `yaml:"size"`
	Speed          float64 `yaml:"speed"`
	HP             int     `yaml:"hp"`
	Damage         int     `yaml:"damage"`
	GroupMin       int     `yaml:"group_min"`
	GroupMax       int     `yaml:"group_max"`
	SpawnWeight    int     `yaml:"spawn_weight"`
	DetectionRange float64 `yaml:"detection_range"`
	AttackRange    float64 `yaml:"attack_range"`
	AttackCooldown float64 `yaml:"attack_cooldown"`

	JumpSpeed    float64 `yaml:"jump_speed,omitempty"`
	JumpCooldown float64 `yaml:"jump_cooldown,omitempty"`

	BowChance       float64 `yaml:"bow_chance,omitempty"`
	BowRange        float64 `yaml:"bow_range,omitempty"`
	BowCooldown     float64 `yaml:"bow_cooldown,omitempty"`
	RangedDamageMul float64 `yaml:"ranged_damage_mul,omitempty"`

	WanderRadius float64 `yaml:"wander_radius,omitempty"`
}

// Drop is one entry of a drop table.
type Drop struct {
	Item   string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
}

// Catalog is immutable once built; share it freely between goroutines.
type Catalog struct {
	Weapons map[string]WeaponStats `yaml:"weapons"`
	Shields map[string]ShieldStats `yaml:"shields"`
	Armor   map[string]ArmorStats  `yaml:"armor"`
	Enemies map[string]EnemyStats  `yaml:"enemies"`
	Drops   map[string][]Drop      `yaml:"drops"`
	Unarmed WeaponStats            `yaml:"unarmed"`
}

// Default returns the stock stat tables.
func Default() *Catalog {
	return &Catalog{
		Weapons: map[string]WeaponStats{
			"sword":   {Damage: 30, AttackSpeed: 1.0, Range: 50, StaminaCost: 15},
			"hammer":  {Damage: 60, AttackSpeed: 0.5, Range: 50, StaminaCost: 20, TwoHanded: true},
			"daggers": {Damage: 30, AttackSpeed: 1.5, Range: 35, StaminaCost: 12, TwoHanded: true},
			"spear":   {Damage: 30, AttackSpeed: 0.6, Range: 75, StaminaCost: 18, TwoHanded: true},
		},
		Shields: map[string]ShieldStats{
			"parrying_buckler": {BlockPercent: 30, StaminaCost: 5},
			"soldier_board":    {BlockPercent: 50, StaminaCost: 10},
			"tower_shield":     {BlockPercent: 70, StaminaCost: 15},
		},
		Armor: map[string]ArmorStats{
			"knight":  {RegenMultiplier: 1.0},
			"samurai": {RegenMultiplier: 0.5},
			"ranger":  {RegenMultiplier: 0.9},
		},
		Enemies: map[string]EnemyStats{
			"larva": {
				Size: 20, Speed: 80, HP: 30, Damage: 10,
				GroupMin: 5, GroupMax: 8, SpawnWeight: 50,
				DetectionRange: 300, AttackRange: 40, AttackCooldown: 1.0,
				JumpSpeed: 400, JumpCooldown: 2.0,
			},
			"ant": {
				Size: 28, Speed: 120, HP: 60, Damage: 20,
				GroupMin: 1, GroupMax: 2, SpawnWeight: 35,
				DetectionRange: 250, AttackRange: 40, AttackCooldown: 1.0,
				BowChance: 0.1, BowRange: 400, BowCooldown: 2.5, RangedDamageMul: 0.8,
			},
			"wasp": {
				Size: 32, Speed: 140, HP: 100, Damage: 35,
				GroupMin: 1, GroupMax: 1, SpawnWeight: 15,
				DetectionRange: 300, AttackRange: 40, AttackCooldown: 1.0,
				WanderRadius: 150,
			},
		},
		Drops: map[string][]Drop{
			"larva": {
				{Item: "sword", Chance: 0.05},
			},
			"ant": {
				{Item: "sword", Chance: 0.1},
				{Item: "daggers", Chance: 0.02},
				{Item: "spear", Chance: 0.02},
				{Item: "parrying_buckler", Chance: 0.05},
				{Item: "soldier_board", Chance: 0.03},
				{Item: "ranger_helmet", Chance: 0.01},
				{Item: "ranger_chestplate", Chance: 0.01},
				{Item: "ranger_greaves", Chance: 0.01},
			},
			"wasp": {
				{Item: "hammer", Chance: 0.05},
				{Item: "tower_shield", Chance: 0.03},
				{Item: "samurai_helmet", Chance: 0.02},
				{Item: "samurai_chestplate", Chance: 0.02},
				{Item: "samurai_greaves", Chance: 0.02},
			},
		},
		Unarmed: WeaponStats{Damage: 10, AttackSpeed: 1.0, Range: 40, StaminaCost: 15},
	}
}

// Load reads a YAML catalog and merges it over Default. Tables present in
// the file replace the matching entries; absent entries keep their defaults.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var override Catalog
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	c := Default()
	for name, w := range override.Weapons {
		c.Weapons[name] = w
	}
	for name, s := range override.Shields {
		c.Shields[name] = s
	}
	for name, a := range override.Armor {
		c.Armor[name] = a
	}
	for name, e := range override.Enemies {
		c.Enemies[name] = e
	}
	for name, d := range override.Drops {
		c.Drops[name] = d
	}
	if override.Unarmed.Damage > 0 {
		c.Unarmed = override.Unarmed
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects tables that would break stamina or damage invariants.
func (c *Catalog) Validate() error {
	for name, s := range c.Shields {
		if s.BlockPercent < 0 || s.BlockPercent > 100 {
			return fmt.Errorf("shield %q: block percent %d out of range", name, s.BlockPercent)
		}
		if s.StaminaCost < 0 {
			return fmt.Errorf("shield %q: negative stamina cost", name)
		}
	}
	for name, w := range c.Weapons {
		if w.AttackSpeed <= 0 {
			return fmt.Errorf("weapon %q: attack speed must be positive", name)
		}
	}
	for name, e := range c.Enemies {
		if e.GroupMin > e.GroupMax {
			return fmt.Errorf("enemy %q: group_min > group_max", name)
		}
	}
	return nil
}

// Weapon returns the stats for name, or the unarmed stats when name is empty
// or unknown.
func (c *Catalog) Weapon(name string) WeaponStats {
	if w, ok := c.Weapons[name]; ok {
		return w
	}
	return c.Unarmed
}

func (c *Catalog) Shield(name string) (ShieldStats, bool) {
	s, ok := c.Shields[name]
	return s, ok
}

// RegenMultiplier returns the multiplier of a complete armor set. An empty or
// unknown set regenerates at the base rate.
func (c *Catalog) RegenMultiplier(set string) float64 {
	if a, ok := c.Armor[set]; ok {
		return a.RegenMultiplier
	}
	return 1.0
}

// Classification describes what an item name is.
type Classification struct {
	Kind  ItemKind
	Set   string
	Piece ArmorPiece
}

// Classify maps an item name to its kind. Armor pieces are named
// <set>_<piece>.
func (c *Catalog) Classify(name string) Classification {
	if _, ok := c.Weapons[name]; ok {
		return Classification{Kind: KindWeapon}
	}
	if _, ok := c.Shields[name]; ok {
		return Classification{Kind: KindShield}
	}
	idx := strings.LastIndexByte(name, '_')
	if idx <= 0 {
		return Classification{}
	}
	set, suffix := name[:idx], name[idx+1:]
	if _, ok := c.Armor[set]; !ok {
		return Classification{}
	}
	var piece ArmorPiece
	switch suffix {
	case "helmet":
		piece = PieceHelmet
	case "chestplate":
		piece = PieceChestplate
	case "greaves":
		piece = PieceGreaves
	default:
		return Classification{}
	}
	return Classification{Kind: KindArmor, Set: set, Piece: piece}
}

// EnemyNames returns enemy type names in a stable order.
func (c *Catalog) EnemyNames() []string {
	names := make([]string, 0, len(c.Enemies))
	for name := range c.Enemies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
