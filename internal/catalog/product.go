package catalog

// Product is the client's view of one catalog entry. IDs are assigned by the
// server and stable for the product's lifetime. Products are never patched in
// place: the collection is only ever replaced wholesale by a refresh.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	ImagePath   string  `json:"imagePath,omitempty"`
}

// NewProduct carries the fields of a locally created product on its way to
// the remote service. Image is the raw upload, forwarded byte-for-byte.
type NewProduct struct {
	Name        string
	Price       float64
	Description string
	ImageName   string
	Image       []byte
}
