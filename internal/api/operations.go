package api

const sideFields = `
	id
	points
`

const gameFields = `
	id
	name
	swapped
	yellow {` + sideFields + `}
	black {` + sideFields + `}
`

const errorFields = `
	error {
		code
		message
	}
`

const fetchAllQuery = `
	query scoreboard {
		matches {
			id
			name
			top {
				id
				name
			}
			bottom {
				id
				name
			}
			games {` + gameFields + `}
		}
		players {
			id
			name
		}
	}
`

const createPlayerMutation = `
	mutation createPlayer($name: String!) {
		createPlayer(input: {name: $name}) {` + errorFields + `
			result {
				id
				name
			}
		}
	}
`

const deletePlayerMutation = `
	mutation deletePlayer($id: ID!) {
		deletePlayer(input: {playerId: $id}) {` + errorFields + `
			result {
				id
				name
			}
		}
	}
`

const createGameMutation = `
	mutation createGame($matchId: ID!, $name: String!, $swapped: Boolean!) {
		createGame(input: {matchId: $matchId, name: $name, swapped: $swapped}) {` + errorFields + `
			result {` + gameFields + `}
		}
	}
`

const deleteGameMutation = `
	mutation deleteGame($id: ID!) {
		deleteGame(input: {id: $id}) {` + errorFields + `
			result {
				id
				name
			}
		}
	}
`

const updateSideMutation = `
	mutation updateSide($id: ID!, $points: Int!) {
		updateSide(input: {id: $id, fields: {points: $points}}) {` + errorFields + `
			result {` + sideFields + `}
		}
	}
`

const addPlayerMatchMutation = `
	mutation addPlayerMatch($id: ID!, $matchId: ID!, $spot: Spot!) {
		addPlayerMatch(input: {playerId: $id, matchId: $matchId, spot: $spot}) {` + errorFields + `
			result
		}
	}
`

const matchSubscription = `
	subscription match {
		match {
			id
			name
		}
	}
`

const matchGamesSubscription = `
	subscription matchGames($matchId: ID!) {
		matchGames(matchId: $matchId) {` + gameFields + `}
	}
`

const sideSubscription = `
	subscription side($id: ID!) {
		side(id: $id) {` + sideFields + `}
	}
`
