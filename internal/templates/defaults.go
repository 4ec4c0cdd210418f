package templates

import "reddit_responder/internal/model"

const footer = "\n*This is an automated message. Replies to this comment are not monitored.*\n"

// DefaultTemplates seeds a catalog file that does not exist yet.
var DefaultTemplates = []model.Template{
	{
		Name:        "General Activism",
		Description: "General activism resources",
		Keywords: []string{
			"how to help", "get involved", "volunteer", "organize",
			"protest", "rally", "petition", "activism", "activist",
			"looking for resources", "need advice", "where can I",
			"how do I start", "beginner activist",
		},
		Body: `Hello! I noticed you're interested in getting involved with activism or social justice work.

Here are some resources that might be helpful:

## Getting Started
- [Mutual Aid Hub](https://www.mutualaidhub.org/) - Find local mutual aid networks
- [Activist Handbook](https://www.activisthandbook.org/) - Comprehensive guide for activists
- [Beautiful Trouble](https://beautifultrouble.org/toolbox/) - Tactics, principles, and case studies

## Digital Security
- [Security in a Box](https://securityinabox.org/) - Digital security tools and tactics
- [Digital First Aid Kit](https://digitalfirstaid.org/) - Help for those facing digital threats

## Community Building
- [Training for Change](https://www.trainingforchange.org/tools/) - Workshop tools and activities

I'm an automated assistant, but I hope these resources help you in your journey!
` + footer,
	},
	{
		Name:        "Mutual Aid",
		Description: "Mutual aid and community support resources",
		Keywords: []string{
			"mutual aid", "community support", "solidarity", "food bank",
			"resource sharing", "community fridge", "free store", "aid network",
			"help neighbors", "community care", "direct support",
		},
		Body: `Hello! I noticed you're interested in mutual aid and community support networks.

Here are some resources specifically focused on mutual aid:

## Mutual Aid Networks
- [Mutual Aid Hub](https://www.mutualaidhub.org/) - Find local mutual aid networks in your area
- [Big Door Brigade](https://bigdoorbrigade.com/) - Resources on how to start mutual aid projects
- [Mutual Aid Disaster Relief](https://mutualaiddisasterrelief.org/) - Support for disaster response

## Guides & Tools
- [Mutual Aid Toolbox](https://mutualaiddisasterrelief.org/resources/) - Practical guides for organizing
- [Neighborhood Pods](https://pod.coop/pod-mapping-for-mutual-aid/) - How to organize neighborhood pods

I hope these resources help you build community support networks!
` + footer,
	},
	{
		Name:        "Digital Security",
		Description: "Digital security and privacy resources",
		Keywords: []string{
			"digital security", "online privacy", "secure messaging", "encryption",
			"protect data", "surveillance", "secure communication", "privacy tools",
			"anonymity", "secure browsing", "protect identity", "digital safety",
		},
		Body: `Hello! I noticed you're asking about digital security and privacy for activists.

Here are some specialized resources for staying safe online:

## Essential Security Tools
- [Security in a Box](https://securityinabox.org/) - Comprehensive digital security tools and tactics
- [EFF's Surveillance Self-Defense](https://ssd.eff.org/) - Tips, tools and how-tos for safer online communications
- [Digital First Aid Kit](https://digitalfirstaid.org/) - Help for those facing digital threats

## Secure Communication
- [Signal](https://signal.org/) - Encrypted messaging app
- [Jitsi Meet](https://meet.jit.si/) - Secure video conferencing

## Anonymity & Privacy
- [Tor Browser](https://www.torproject.org/) - Browse the web anonymously
- [Tails OS](https://tails.net/) - Privacy-focused operating system

Stay safe in your digital activism!
` + footer,
	},
	{
		Name:        "Community Organizing",
		Description: "Community organizing and movement building resources",
		Keywords: []string{
			"community organizing", "grassroots", "direct action", "campaign",
			"coalition building", "mobilizing", "canvassing", "base building",
			"leadership development", "strategy", "movement building",
		},
		Body: `Hello! I noticed you're interested in community organizing and movement building.

Here are some resources focused on effective organizing:

## Organizing Fundamentals
- [Midwest Academy Manual](https://www.midwestacademy.com/manual/) - Classic organizing strategy guide
- [Beautiful Trouble](https://beautifultrouble.org/toolbox/) - Tactics, principles, and case studies
- [Training for Change](https://www.trainingforchange.org/tools/) - Workshop tools and activities

## Strategic Campaigns
- [The Change Agency](https://thechangeagency.org/resources/) - Campaign planning tools
- [Commons Social Change Library](https://commonslibrary.org/) - Comprehensive activist resource collection

I hope these resources help strengthen your organizing work!
` + footer,
	},
}
