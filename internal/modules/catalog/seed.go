package catalog

import "github.com/shopspring/decimal"

func product(id int, name string, price int64, category, imageURL string) Product {
	return Product{ID: id, Name: name, Price: decimal.NewFromInt(price), Category: category, ImageURL: imageURL}
}

// DefaultProducts is the stock the terminal starts with (prices in INR).
func DefaultProducts() []Product {
	return []Product{
		product(1, "Parle-G Biscuit", 10, "Groceries", ""),
		product(2, "Amul Milk 1L", 55, "Dairy", ""),
		product(3, "Tata Salt 1kg", 25, "Groceries", ""),
		product(4, "Fortune Oil 1L", 150, "Groceries", "https://i.imgur.com/s6aBqj7.jpeg"),
		product(5, "Aashirvaad Atta 5kg", 250, "Groceries", ""),
		product(6, "Dettol Soap", 40, "Personal Care", ""),
		product(7, "Colgate Toothpaste", 90, "Personal Care", "https://i.imgur.com/uS2tVda.jpeg"),
		product(8, "Surf Excel 1kg", 200, "Household", ""),
		product(9, "Maggi Noodles", 14, "Snacks", ""),
		product(10, "Brooke Bond Tea 250g", 120, "Beverages", "https://i.imgur.com/sS5O5yM.jpeg"),
		product(11, "Nescafe Coffee 50g", 150, "Beverages", ""),
		product(12, "Britannia Bread", 45, "Bakery", ""),
		product(13, "Amul Butter 100g", 52, "Dairy", "https://i.imgur.com/UfGFLFf.jpeg"),
		product(14, "Lays Chips", 20, "Snacks", ""),
	}
}
