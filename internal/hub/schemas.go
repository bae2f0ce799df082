package hub

// MealTypes are the accepted values for a meal log's mealType field.
var MealTypes = []string{"Breakfast", "Lunch", "Dinner", "Snack"}

const mealLogSchema = `{
	"type": "object",
	"required": ["date", "mealType", "description", "estimatedCalories"],
	"properties": {
		"date": {
			"type": "string",
			"pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"
		},
		"mealType": {
			"type": "string",
			"enum": ["Breakfast", "Lunch", "Dinner", "Snack"]
		},
		"description": {
			"type": "string",
			"minLength": 1
		},
		"estimatedCalories": {
			"type": "number",
			"minimum": 0
		}
	}
}`

const recipeSchema = `{
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {
			"type": "string",
			"minLength": 1
		},
		"description": {
			"type": "string"
		},
		"ingredients": {
			"type": "array",
			"items": {"type": "string"}
		},
		"instructions": {
			"type": "array",
			"items": {"type": "string"}
		}
	}
}`
