package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the immutable ingredient/recipe data the game is played
// against. It is loaded once at startup and only ever read after that.
type Catalog struct {
	ingredients map[string]Ingredient
	recipes     map[string]Recipe

	ingredientList []Ingredient
	recipeList     []Recipe
}

type Ingredient struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price int    `yaml:"price"`
}

type Requirement struct {
	IngredientID string `yaml:"ingredient"`
	Quantity     int    `yaml:"quantity"`
}

type Recipe struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	SalePrice   int           `yaml:"sale_price"`
	Ingredients []Requirement `yaml:"ingredients"`
}

type file struct {
	Ingredients []Ingredient `yaml:"ingredients"`
	Recipes     []Recipe     `yaml:"recipes"`
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog.yaml: %w", err)
	}
	return build(f)
}

func build(f file) (*Catalog, error) {
	c := &Catalog{
		ingredients: make(map[string]Ingredient, len(f.Ingredients)),
		recipes:     make(map[string]Recipe, len(f.Recipes)),
	}
	for _, ing := range f.Ingredients {
		if ing.ID == "" || ing.Name == "" {
			return nil, fmt.Errorf("ingredient missing id or name: %+v", ing)
		}
		if _, dup := c.ingredients[ing.ID]; dup {
			return nil, fmt.Errorf("duplicate ingredient id %q", ing.ID)
		}
		if ing.Price <= 0 {
			ing.Price = 1
		}
		c.ingredients[ing.ID] = ing
	}
	for _, r := range f.Recipes {
		if r.ID == "" || r.Name == "" {
			return nil, fmt.Errorf("recipe missing id or name: %+v", r)
		}
		if _, dup := c.recipes[r.ID]; dup {
			return nil, fmt.Errorf("duplicate recipe id %q", r.ID)
		}
		if r.SalePrice <= 0 {
			r.SalePrice = 10
		}
		for i, req := range r.Ingredients {
			if _, ok := c.ingredients[req.IngredientID]; !ok {
				return nil, fmt.Errorf("recipe %q references unknown ingredient %q", r.ID, req.IngredientID)
			}
			if req.Quantity < 1 {
				r.Ingredients[i].Quantity = 1
			}
		}
		c.recipes[r.ID] = r
	}

	c.ingredientList = make([]Ingredient, 0, len(c.ingredients))
	for _, ing := range c.ingredients {
		c.ingredientList = append(c.ingredientList, ing)
	}
	sort.Slice(c.ingredientList, func(i, j int) bool { return c.ingredientList[i].Name < c.ingredientList[j].Name })

	c.recipeList = make([]Recipe, 0, len(c.recipes))
	for _, r := range c.recipes {
		c.recipeList = append(c.recipeList, r)
	}
	sort.Slice(c.recipeList, func(i, j int) bool { return c.recipeList[i].Name < c.recipeList[j].Name })

	return c, nil
}

// New builds a catalog from already-decoded data. Used by tests.
func New(ingredients []Ingredient, recipes []Recipe) (*Catalog, error) {
	return build(file{Ingredients: ingredients, Recipes: recipes})
}

func (c *Catalog) Ingredients() []Ingredient { return c.ingredientList }
func (c *Catalog) Recipes() []Recipe         { return c.recipeList }

func (c *Catalog) Ingredient(id string) (Ingredient, bool) {
	ing, ok := c.ingredients[id]
	return ing, ok
}

func (c *Catalog) Recipe(id string) (Recipe, bool) {
	r, ok := c.recipes[id]
	return r, ok
}

// IngredientCost is the sum of unit price times required quantity across a
// recipe's requirements.
func (c *Catalog) IngredientCost(r Recipe) int {
	total := 0
	for _, req := range r.Ingredients {
		if ing, ok := c.ingredients[req.IngredientID]; ok {
			total += ing.Price * req.Quantity
		}
	}
	return total
}

// MatchExact finds the recipe whose required ingredient set is exactly the
// given selection (ignoring order, ignoring quantities). Lab experiments use
// this to discover recipes.
func (c *Catalog) MatchExact(ingredientIDs []string) (Recipe, bool) {
	selected := make(map[string]bool, len(ingredientIDs))
	for _, id := range ingredientIDs {
		selected[id] = true
	}
	for _, r := range c.recipeList {
		if len(r.Ingredients) != len(selected) {
			continue
		}
		all := true
		for _, req := range r.Ingredients {
			if !selected[req.IngredientID] {
				all = false
				break
			}
		}
		if all {
			return r, true
		}
	}
	return Recipe{}, false
}
