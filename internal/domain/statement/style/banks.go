package style

import "strings"

// hdfcStyle parses HDFC narrations. UPI rows are dash-delimited:
// "UPI-<name>-<vpa>-<bank ref>-<remark>". NEFT/RTGS rows:
// "NEFT CR-<ifsc>-<party>-<remark>". POS rows: "POS <card> <merchant>".
type hdfcStyle struct {
	baseStyle
}

func (h hdfcStyle) CleanDescription(desc string) string {
	return h.clean(desc)
}

func (h hdfcStyle) ExtractEntities(desc string) Entities {
	e := Entities{TransferType: transferTypeOf(desc)}
	upper := strings.ToUpper(desc)

	switch {
	case strings.HasPrefix(upper, "UPI-"):
		parts := strings.Split(desc, "-")
		// parts[0]="UPI", [1]=display name, [2]=vpa, [3]=bank ref, [4:]=remark
		if len(parts) > 2 && vpaPattern.MatchString(parts[2]) {
			e.VPA = vpaPattern.FindString(parts[2])
		}
		if len(parts) > 3 && refPattern.MatchString(parts[3]) {
			e.BankRef = refPattern.FindString(parts[3])
		}
		if len(parts) > 1 {
			assignParty(&e, parts[1], false)
		}
	case strings.HasPrefix(upper, "NEFT") || strings.HasPrefix(upper, "RTGS") || strings.HasPrefix(upper, "IMPS"):
		parts := strings.Split(desc, "-")
		// parts[0]=channel+direction, [1]=ifsc or ref, [2]=party
		if len(parts) > 1 && ifscLike.MatchString(strings.ToUpper(parts[1])) {
			e.Branch = strings.ToUpper(parts[1])
		}
		if len(parts) > 2 {
			assignParty(&e, parts[2], false)
		}
	case strings.HasPrefix(upper, "POS "):
		fields := strings.Fields(desc)
		// fields[1]=masked card, rest=merchant
		if len(fields) > 2 {
			assignParty(&e, strings.Join(fields[2:], " "), true)
		}
	default:
		return defaultStyle{h.baseStyle}.ExtractEntities(desc)
	}
	return e
}

// sbinStyle parses SBI narrations, slash-delimited with a TO/BY TRANSFER
// prefix: "TO TRANSFER-UPI/DR/<ref>/<name>/<bank>/<vpa>/<remark>".
type sbinStyle struct {
	baseStyle
}

func (s sbinStyle) CleanDescription(desc string) string {
	cleaned := s.clean(desc)
	for _, prefix := range []string{"TO TRANSFER-", "BY TRANSFER-", "TO TRANSFER", "BY TRANSFER"} {
		if strings.HasPrefix(strings.ToUpper(cleaned), prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}
	return cleaned
}

func (s sbinStyle) ExtractEntities(desc string) Entities {
	stripped := s.CleanDescription(desc)
	e := Entities{TransferType: transferTypeOf(stripped)}

	parts := strings.Split(stripped, "/")
	if len(parts) < 3 || e.TransferType == "" {
		return defaultStyle{s.baseStyle}.ExtractEntities(desc)
	}
	// parts[0]=channel, [1]=DR|CR, [2]=ref, [3]=name, [4]=bank, [5]=vpa
	if len(parts) > 2 && refPattern.MatchString(parts[2]) {
		e.BankRef = refPattern.FindString(parts[2])
	}
	if len(parts) > 3 {
		assignParty(&e, parts[3], false)
	}
	if len(parts) > 4 {
		e.Branch = strings.TrimSpace(parts[4])
	}
	if len(parts) > 5 && vpaPattern.MatchString(parts[5]) {
		e.VPA = vpaPattern.FindString(parts[5])
	}
	return e
}

// iciciStyle parses ICICI narrations:
// "UPI/<ref>/<remark>/<name>/<bank>/<vpa>" and
// "MMT/IMPS/<ref>/<remark>/<name>/<bank>".
type iciciStyle struct {
	baseStyle
}

func (i iciciStyle) CleanDescription(desc string) string {
	return i.clean(desc)
}

func (i iciciStyle) ExtractEntities(desc string) Entities {
	e := Entities{TransferType: transferTypeOf(desc)}
	parts := strings.Split(desc, "/")
	upper := strings.ToUpper(desc)

	switch {
	case strings.HasPrefix(upper, "UPI/") && len(parts) >= 4:
		// parts[1]=ref, [2]=remark, [3]=name, [4]=bank, [5]=vpa
		if refPattern.MatchString(parts[1]) {
			e.BankRef = refPattern.FindString(parts[1])
		}
		assignParty(&e, parts[3], false)
		if len(parts) > 4 {
			e.Branch = strings.TrimSpace(parts[4])
		}
		if len(parts) > 5 && vpaPattern.MatchString(parts[5]) {
			e.VPA = vpaPattern.FindString(parts[5])
		}
	case strings.HasPrefix(upper, "MMT/IMPS/") && len(parts) >= 5:
		// parts[2]=ref, [3]=remark, [4]=name, [5]=bank
		if refPattern.MatchString(parts[2]) {
			e.BankRef = refPattern.FindString(parts[2])
		}
		assignParty(&e, parts[4], false)
		if len(parts) > 5 {
			e.Branch = strings.TrimSpace(parts[5])
		}
	default:
		return defaultStyle{i.baseStyle}.ExtractEntities(desc)
	}
	return e
}

// axisStyle parses Axis narrations: "UPI/P2M/<ref>/<name>/<bank>/<remark>"
// where P2M marks merchant payments and P2A person transfers.
type axisStyle struct {
	baseStyle
}

func (a axisStyle) CleanDescription(desc string) string {
	return a.clean(desc)
}

func (a axisStyle) ExtractEntities(desc string) Entities {
	e := Entities{TransferType: transferTypeOf(desc)}
	parts := strings.Split(desc, "/")
	upper := strings.ToUpper(desc)

	if strings.HasPrefix(upper, "UPI/") && len(parts) >= 4 {
		mode := strings.ToUpper(strings.TrimSpace(parts[1]))
		// parts[2]=ref, [3]=name, [4]=bank, [5]=remark
		if refPattern.MatchString(parts[2]) {
			e.BankRef = refPattern.FindString(parts[2])
		}
		assignParty(&e, parts[3], mode == "P2M")
		if len(parts) > 4 {
			e.Branch = strings.TrimSpace(parts[4])
		}
		return e
	}
	return defaultStyle{a.baseStyle}.ExtractEntities(desc)
}

// kotakStyle parses Kotak narrations: "UPI/<name>/<ref>/<vpa>/<bank>".
type kotakStyle struct {
	baseStyle
}

func (k kotakStyle) CleanDescription(desc string) string {
	return k.clean(desc)
}

func (k kotakStyle) ExtractEntities(desc string) Entities {
	e := Entities{TransferType: transferTypeOf(desc)}
	parts := strings.Split(desc, "/")

	if strings.HasPrefix(strings.ToUpper(desc), "UPI/") && len(parts) >= 3 {
		// parts[1]=name, [2]=ref, [3]=vpa, [4]=bank
		if refPattern.MatchString(parts[2]) {
			e.BankRef = refPattern.FindString(parts[2])
		}
		if len(parts) > 3 && vpaPattern.MatchString(parts[3]) {
			e.VPA = vpaPattern.FindString(parts[3])
		}
		if len(parts) > 4 {
			e.Branch = strings.TrimSpace(parts[4])
		}
		assignParty(&e, parts[1], false)
		return e
	}
	return defaultStyle{k.baseStyle}.ExtractEntities(desc)
}
