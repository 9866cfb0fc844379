package digest

// Info describes an algorithm for display and estimation.
type Info struct {
	Name       string
	OutputBits int
	BlockBits  int
	Status     string
	Secure     bool
}

var infos = map[Algorithm]Info{
	MD5:     {Name: "MD5", OutputBits: 128, BlockBits: 512, Status: "deprecated"},
	SHA1:    {Name: "SHA-1", OutputBits: 160, BlockBits: 512, Status: "vulnerable"},
	SHA256:  {Name: "SHA-256", OutputBits: 256, BlockBits: 512, Status: "secure", Secure: true},
	SHA512:  {Name: "SHA-512", OutputBits: 512, BlockBits: 1024, Status: "secure", Secure: true},
	SHA3:    {Name: "SHA3-256", OutputBits: 256, BlockBits: 1088, Status: "secure", Secure: true},
	BLAKE2B: {Name: "BLAKE2b-256", OutputBits: 256, BlockBits: 1024, Status: "secure", Secure: true},
	BLAKE3:  {Name: "BLAKE3", OutputBits: 256, BlockBits: 512, Status: "secure", Secure: true},
	XXH3:    {Name: "XXH3-64", OutputBits: 64, BlockBits: 512, Status: "non-cryptographic"},
}

// InfoFor returns the metadata for alg.
func InfoFor(alg Algorithm) (Info, bool) {
	info, ok := infos[alg]
	return info, ok
}
