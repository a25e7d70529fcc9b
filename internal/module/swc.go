package module

// 常见漏洞
// https://swcregistry.io/

type SWCData struct {
	ID          string
	Title       string
	Description string
}

var SWCDataMap = map[string]*SWCData{
	"107": {
		"107",
		"Reentrancy",
		"One of the major dangers of calling external contracts is that they can take over the control flow. In the reentrancy attack (a.k.a. recursive call attack), a malicious contract calls back into the calling contract before the first invocation of the function is finished. This may cause the different invocations of the function to interact in undesirable ways.",
	},
}
