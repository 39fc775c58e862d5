package recipe

// Prompt is the fixed instruction sent alongside every photo.
const Prompt = "Identify all ingredients in this image. Then suggest 5 recipes I can make with these ingredients. " +
	"For each recipe, provide a name, list of ingredients (marking which ones were identified in the image with '(found)' " +
	"and which ones are missing with '(not found)'), and step-by-step instructions. Format this nicely with markdown."
