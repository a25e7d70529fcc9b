package issue

import (
	"fmt"
	"strings"
)

type Issue struct {
	ID          string `json:"swc_id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Contract  string `json:"contract,omitempty"`
	Function  string `json:"function,omitempty"`
	CallChain string `json:"call_chain,omitempty"`
	Trace     string `json:"trace,omitempty"`
}

func (is *Issue) String() string {
	swcDescription := fmt.Sprintf("ID: %s\nTitle: %s\nDescription: %s\n\n",
		is.ID, is.Title, is.Description)
	swcDescription = Colour(31, swcDescription)

	location := is.Contract
	if is.Function != "" {
		location = fmt.Sprintf("%s.%s", is.Contract, is.Function)
	}
	callInfo := fmt.Sprintf("In contract: %s\nCall chain: %s\n", location, is.CallChain)
	if is.Trace != "" {
		callInfo += strings.TrimRight(is.Trace, "\n") + "\n"
	}
	callInfo = Colour(33, callInfo)

	return fmt.Sprintf("%s%s", swcDescription, callInfo)
}

func Colour(color int, str string) string {
	return fmt.Sprintf("\033[%dm%s\033[0m", color, str)
}
