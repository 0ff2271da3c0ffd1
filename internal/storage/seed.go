package storage

import "github.com/pustakalab/pustaka/internal/models"

// seedCatalog is the starter collection inserted into an empty database so a
// fresh install can answer questions immediately.
var seedCatalog = []models.Book{
	{
		Title:         "Clean Code",
		Author:        "Robert C. Martin",
		RackLocation:  "A1",
		Category:      "Software Engineering",
		Description:   "A handbook of agile software craftsmanship covering naming, functions, comments, and refactoring.",
		PublishedYear: "2008",
	},
	{
		Title:         "Artificial Intelligence: A Modern Approach",
		Author:        "Stuart Russell and Peter Norvig",
		RackLocation:  "A2",
		Category:      "Artificial Intelligence",
		Description:   "The standard university textbook on AI, from search and logic to machine learning and robotics.",
		PublishedYear: "2020",
	},
	{
		Title:         "The Pragmatic Programmer",
		Author:        "Andrew Hunt and David Thomas",
		RackLocation:  "A1",
		Category:      "Software Engineering",
		Description:   "Practical advice on software craftsmanship, from DRY and orthogonality to tooling and career growth.",
		PublishedYear: "1999",
	},
	{
		Title:         "Deep Learning",
		Author:        "Ian Goodfellow, Yoshua Bengio, and Aaron Courville",
		RackLocation:  "A2",
		Category:      "Artificial Intelligence",
		Description:   "A comprehensive introduction to deep learning covering math foundations, networks, and research topics.",
		PublishedYear: "2016",
	},
	{
		Title:         "Sapiens: A Brief History of Humankind",
		Author:        "Yuval Noah Harari",
		RackLocation:  "B1",
		Category:      "History",
		Description:   "A sweeping narrative of human history from the cognitive revolution to the present.",
		PublishedYear: "2011",
	},
	{
		Title:         "Dune",
		Author:        "Frank Herbert",
		RackLocation:  "F3",
		Category:      "Fiction",
		Description:   "Science fiction epic of politics, religion, and ecology on the desert planet Arrakis.",
		PublishedYear: "1965",
	},
	{
		Title:         "Introduction to Algorithms",
		Author:        "Thomas H. Cormen, Charles E. Leiserson, Ronald L. Rivest, and Clifford Stein",
		RackLocation:  "A3",
		Category:      "Computer Science",
		Description:   "The comprehensive reference on algorithms and data structures with rigorous analysis.",
		PublishedYear: "2009",
	},
}
