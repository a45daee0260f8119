package options

func Bool(value bool) *bool {
	v := value
	return &v
}
