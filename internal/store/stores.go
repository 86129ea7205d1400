package store

// Stores 存储集合
type Stores struct {
	User    *UserStore
	Catalog *CatalogStore
}

// NewStores 打开全部存储
func NewStores(dataDir string) (*Stores, error) {
	users, err := NewUserStore(dataDir)
	if err != nil {
		return nil, err
	}

	catalog, err := NewCatalogStore(dataDir)
	if err != nil {
		return nil, err
	}

	return &Stores{
		User:    users,
		Catalog: catalog,
	}, nil
}
