package seeders

type branchSeed struct {
	Name string
	Code string
}

type locationSeed struct {
	BranchCode string
	Code       string
	NameEn     string
	NameAr     string
}

type partSeed struct {
	PartNumber string
	Name       string
}

type openingStockSeed struct {
	PartNumber   string
	BranchCode   string
	LocationCode string
	Quantity     int
}

var branchesData = []branchSeed{
	{Name: "Riyadh Main", Code: "RUH"},
	{Name: "Jeddah", Code: "JED"},
	{Name: "Dammam", Code: "DMM"},
}

var locationsData = []locationSeed{
	{BranchCode: "RUH", Code: "A1", NameEn: "Aisle A shelf 1", NameAr: "الممر أ رف 1"},
	{BranchCode: "RUH", Code: "A2", NameEn: "Aisle A shelf 2", NameAr: "الممر أ رف 2"},
	{BranchCode: "RUH", Code: "B1", NameEn: "Aisle B shelf 1", NameAr: "الممر ب رف 1"},
	{BranchCode: "JED", Code: "A1", NameEn: "Aisle A shelf 1", NameAr: "الممر أ رف 1"},
	{BranchCode: "JED", Code: "C1", NameEn: "Cage 1", NameAr: "القفص 1"},
	{BranchCode: "DMM", Code: "A1", NameEn: "Aisle A shelf 1", NameAr: "الممر أ رف 1"},
}

var partsData = []partSeed{
	{PartNumber: "OF-1001", Name: "Oil filter"},
	{PartNumber: "BP-2040", Name: "Brake pad set"},
	{PartNumber: "SP-0310", Name: "Spark plug"},
	{PartNumber: "AF-7722", Name: "Air filter"},
}

var openingStockData = []openingStockSeed{
	{PartNumber: "OF-1001", BranchCode: "RUH", LocationCode: "A1", Quantity: 40},
	{PartNumber: "OF-1001", BranchCode: "RUH", LocationCode: "B1", Quantity: 10},
	{PartNumber: "BP-2040", BranchCode: "RUH", LocationCode: "A2", Quantity: 12},
	{PartNumber: "SP-0310", BranchCode: "JED", LocationCode: "C1", Quantity: 200},
	{PartNumber: "AF-7722", BranchCode: "DMM", LocationCode: "A1", Quantity: 6},
}
