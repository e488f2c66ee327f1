package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassify(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		kind  ItemKind
		set   string
		piece ArmorPiece
	}{
		{"sword", KindWeapon, "", PieceNone},
		{"hammer", KindWeapon, "", PieceNone},
		{"tower_shield", KindShield, "", PieceNone},
		{"ranger_helmet", KindArmor, "ranger", PieceHelmet},
		{"samurai_chestplate", KindArmor, "samurai", PieceChestplate},
		{"knight_greaves", KindArmor, "knight", PieceGreaves},
		{"pirate_helmet", KindUnknown, "", PieceNone},
		{"ranger_boots", KindUnknown, "", PieceNone},
		{"", KindUnknown, "", PieceNone},
	}

	for _, tt := range tests {
		got := c.Classify(tt.name)
		if got.Kind != tt.kind || got.Set != tt.set || got.Piece != tt.piece {
			t.Errorf("Classify(%q) = %+v, expected kind=%v set=%q piece=%v", tt.name, got, tt.kind, tt.set, tt.piece)
		}
	}
}

func TestWeapon_FallsBackToUnarmed(t *testing.T) {
	c := Default()
	if got := c.Weapon(""); got != c.Unarmed {
		t.Errorf("Expected unarmed stats for empty weapon, got %+v", got)
	}
	if got := c.Weapon("hammer"); !got.TwoHanded || got.Damage != 60 {
		t.Errorf("Expected two-handed hammer with 60 damage, got %+v", got)
	}
}

func TestRegenMultiplier(t *testing.T) {
	c := Default()
	if got := c.RegenMultiplier("samurai"); got != 0.5 {
		t.Errorf("Expected samurai regen 0.5, got %v", got)
	}
	if got := c.RegenMultiplier(""); got != 1.0 {
		t.Errorf("Expected base regen 1.0 without a set, got %v", got)
	}
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := []byte(`
shields:
  tower_shield:
    block_percent: 80
    stamina_cost: 20
weapons:
  club:
    damage: 25
    attack_speed: 0.8
    range: 45
    stamina_cost: 14
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got := c.Shields["tower_shield"].BlockPercent; got != 80 {
		t.Errorf("Expected tower shield override 80, got %d", got)
	}
	if _, ok := c.Weapons["club"]; !ok {
		t.Error("Expected new weapon club to be added")
	}
	if _, ok := c.Weapons["sword"]; !ok {
		t.Error("Expected default sword to survive the merge")
	}
}

func TestLoad_RejectsInvalidShield(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := []byte("shields:\n  broken:\n    block_percent: 150\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected an error for a block percent above 100")
	}
}
