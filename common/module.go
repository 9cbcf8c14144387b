package common

type Module string

const (
	ModuleMarket Module = "market"
)

func (m Module) String() string {
	return string(m)
}
