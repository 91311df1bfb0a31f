package chat

import "github.com/charmbracelet/lipgloss"

// Leaf village palette (ANSI 256).
const (
	leafGreen   = lipgloss.Color("28")
	leafLight   = lipgloss.Color("71")
	leafPale    = lipgloss.Color("114")
	barkBrown   = lipgloss.Color("130")
	sandTan     = lipgloss.Color("180")
	willOfFire  = lipgloss.Color("214")
	emberRed    = lipgloss.Color("203")
	bloodRed    = lipgloss.Color("160")
	scrollWhite = lipgloss.Color("230")
	shadowInk   = lipgloss.Color("16")
	nightSky    = lipgloss.Color("233")
	muted       = lipgloss.Color("244")
)

type theme struct {
	header     lipgloss.Style
	headerMeta lipgloss.Style
	divider    lipgloss.Style
	bootLine   lipgloss.Style
	bootDone   lipgloss.Style
	userBox    lipgloss.Style
	userTitle  lipgloss.Style
	botBox     lipgloss.Style
	botTitle   lipgloss.Style
	promptBox  lipgloss.Style
	errorBox   lipgloss.Style
	errorTitle lipgloss.Style
	status     lipgloss.Style
	statusBusy lipgloss.Style
	statusErr  lipgloss.Style
	hint       lipgloss.Style
	inputLabel lipgloss.Style
	input      lipgloss.Style
	viewport   lipgloss.Style
}

// card is a bordered message bubble.
func card(border lipgloss.Border, edge lipgloss.Color, fill lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		BorderForeground(edge).
		Background(fill).
		Padding(0, 1)
}

// badge is the label printed above a card.
func badge(fg lipgloss.Color, bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(fg).Background(bg).Padding(0, 1)
}

func bold(fg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(fg)
}

func defaultTheme() theme {
	return theme{
		header:     badge(scrollWhite, leafGreen),
		headerMeta: lipgloss.NewStyle().Foreground(sandTan),
		divider:    lipgloss.NewStyle().Foreground(barkBrown),
		bootLine:   lipgloss.NewStyle().Foreground(sandTan),
		bootDone:   bold(leafPale),

		userBox:    card(lipgloss.DoubleBorder(), willOfFire, lipgloss.Color("235")),
		userTitle:  badge(shadowInk, willOfFire),
		botBox:     card(lipgloss.DoubleBorder(), leafLight, lipgloss.Color("234")),
		botTitle:   badge(shadowInk, leafLight),
		promptBox:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(leafPale).Padding(0, 1),
		errorBox:   card(lipgloss.DoubleBorder(), emberRed, lipgloss.Color("52")).Foreground(emberRed),
		errorTitle: badge(lipgloss.Color("231"), bloodRed),

		status:     bold(lipgloss.Color("250")),
		statusBusy: bold(willOfFire),
		statusErr:  bold(emberRed),
		hint:       lipgloss.NewStyle().Foreground(muted),

		inputLabel: bold(scrollWhite),
		input:      card(lipgloss.RoundedBorder(), sandTan, lipgloss.Color("236")),
		viewport:   card(lipgloss.ThickBorder(), barkBrown, nightSky),
	}
}
