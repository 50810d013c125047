// Package questionbank holds the static question templates exams are built
// from. Lookup only: no randomisation and no per-user exclusion.
package questionbank

import (
	"fmt"

	"vmxio.com/skillforge/internal/models"
)

type Template struct {
	Text         string
	Options      []string
	CorrectIndex int
	Explanation  string
	Points       int
}

var templates = map[string][]Template{
	models.DifficultyNovice: {
		{
			Text:         "What is the primary goal of supervised learning?",
			Options:      []string{"To find hidden patterns", "To learn from labeled data", "To reduce data size", "To visualize data"},
			CorrectIndex: 1,
			Explanation:  "Supervised learning uses labeled training data to learn a mapping from inputs to outputs.",
			Points:       1,
		},
		{
			Text:         "Which of the following is a classification algorithm?",
			Options:      []string{"Linear Regression", "Decision Tree", "K-Means", "PCA"},
			CorrectIndex: 1,
			Explanation:  "Decision Tree is a classification algorithm that creates a tree-like model of decisions.",
			Points:       1,
		},
	},
	models.DifficultyIntermediate: {
		{
			Text:         "What is the purpose of cross-validation in machine learning?",
			Options:      []string{"To increase training speed", "To evaluate model performance", "To reduce overfitting", "To select features"},
			CorrectIndex: 1,
			Explanation:  "Cross-validation helps evaluate how well a model generalizes to unseen data.",
			Points:       2,
		},
		{
			Text:         "Which activation function is commonly used in hidden layers of deep neural networks?",
			Options:      []string{"Sigmoid", "ReLU", "Linear", "Step"},
			CorrectIndex: 1,
			Explanation:  "ReLU (Rectified Linear Unit) is widely used because it helps mitigate the vanishing gradient problem.",
			Points:       2,
		},
	},
	models.DifficultyExpert: {
		{
			Text:         "What key mechanism allows the Transformer model to weigh the importance of different words in the input sequence?",
			Options:      []string{"Recurrent Loop", "Attention Mechanism", "Convolutional Filter", "Max-Pooling Layers"},
			CorrectIndex: 1,
			Explanation:  "The attention mechanism lets the model focus on relevant parts of the input sequence when processing each token.",
			Points:       3,
		},
		{
			Text:         "In a Transformer architecture, what is the purpose of positional encoding?",
			Options:      []string{"To reduce computational complexity", "To provide sequence order information", "To normalize input values", "To prevent overfitting"},
			CorrectIndex: 1,
			Explanation:  "Transformers have no inherent sequence order, so positional encoding gives the model token positions.",
			Points:       3,
		},
	},
	models.DifficultyMaster: {
		{
			Text:         "Which component of the Transformer processes all positions simultaneously rather than sequentially?",
			Options:      []string{"LSTM layers", "Self-attention mechanism", "Recurrent connections", "Sequential processing unit"},
			CorrectIndex: 1,
			Explanation:  "Self-attention processes all positions in parallel, unlike sequential models such as RNNs.",
			Points:       4,
		},
	},
}

// Templates returns a copy of the tier's templates. Unknown tiers fall back
// to Intermediate.
func Templates(difficulty string) []Template {
	src, ok := templates[difficulty]
	if !ok {
		src = templates[models.DifficultyIntermediate]
	}
	out := make([]Template, len(src))
	for i, t := range src {
		t.Options = append([]string(nil), t.Options...)
		out[i] = t
	}
	return out
}

// Generate cycles through the tier's templates until count questions exist,
// suffixing each text with its 1-based position so rows stay distinct.
func Generate(difficulty string, count int) []Template {
	if count <= 0 {
		return nil
	}
	tpls := Templates(difficulty)
	out := make([]Template, 0, count)
	for i := 0; i < count; i++ {
		t := tpls[i%len(tpls)]
		t.Options = append([]string(nil), t.Options...)
		t.Text = fmt.Sprintf("%s (Question %d)", t.Text, i+1)
		out = append(out, t)
	}
	return out
}
